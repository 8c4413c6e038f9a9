package game

import "errors"

var (
	ErrNotRunning     = errors.New("game is not running")
	ErrInvalidDelta   = errors.New("move delta must be one step in {-1,0,1} and not zero")
	ErrNoSuchPlayer   = errors.New("no such player")
	ErrPlayerExists   = errors.New("player id already known")
	ErrNoSpawnCell    = errors.New("no free spawn cell on the board")
	ErrGraceExpired   = errors.New("player grace period expired")
	ErrNoSuchEntity   = errors.New("no such entity")
	ErrOutOfBounds    = errors.New("position is out of bounds")
	ErrEntityConflict = errors.New("cell already holds a solid entity")
)
