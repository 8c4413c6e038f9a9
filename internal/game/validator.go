package game

import "github.com/gridwalk/server/internal/board"

// VerdictCode classifies the outcome of a movement check.
type VerdictCode string

const (
	VerdictOK          VerdictCode = "ok"
	VerdictOutOfBounds VerdictCode = "out_of_bounds"
	VerdictWall        VerdictCode = "wall"
	VerdictEntity      VerdictCode = "entity"
	VerdictPlayer      VerdictCode = "player"
)

// Verdict is the result of validating one move. X, Y hold the attempted
// target cell regardless of outcome.
type Verdict struct {
	Code          VerdictCode
	X             int
	Y             int
	OtherPlayerID string
	OtherEntityID string
}

// OK reports whether the move is allowed.
func (v Verdict) OK() bool { return v.Code == VerdictOK }

// ValidateMove decides whether the player may step by (dx, dy). It is a pure
// function of the board and the active player set; evaluation order is fixed:
// bounds, wall, solid entity, other active player. The mover's own cell is
// excluded from the player check.
func ValidateMove(b *board.Board, players map[string]*Player, playerID string, dx, dy int) Verdict {
	p, ok := players[playerID]
	if !ok {
		// Callers check existence first; an unknown mover can never step.
		return Verdict{Code: VerdictOutOfBounds}
	}

	nx, ny := p.X+dx, p.Y+dy
	verdict := Verdict{X: nx, Y: ny}

	if !b.InBounds(nx, ny) {
		verdict.Code = VerdictOutOfBounds
		return verdict
	}
	if b.IsWall(nx, ny) {
		verdict.Code = VerdictWall
		return verdict
	}
	if ref, occupied := b.SolidEntityAt(nx, ny); occupied {
		verdict.Code = VerdictEntity
		verdict.OtherEntityID = ref.EntityID
		return verdict
	}
	for id, other := range players {
		if id == playerID {
			continue
		}
		if other.X == nx && other.Y == ny {
			verdict.Code = VerdictPlayer
			verdict.OtherPlayerID = id
			return verdict
		}
	}

	verdict.Code = VerdictOK
	return verdict
}
