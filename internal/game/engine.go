package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridwalk/server/internal/board"
	"github.com/gridwalk/server/internal/events"
)

// RemoveReason distinguishes a transport-level disconnect, which parks the
// player in the grace registry, from an explicit quit, which is final.
type RemoveReason string

const (
	RemoveDisconnect RemoveReason = "disconnect"
	RemoveQuit       RemoveReason = "quit"
)

type disconnectedPlayer struct {
	player *Player
	at     time.Time
}

// Engine owns the canonical game state: board, active and disconnected
// players, entities, score and the running flag. Every operation runs under a
// single mutex, which gives a total order on state changes and makes each
// Snapshot a consistent point-in-time view.
type Engine struct {
	mu           sync.Mutex
	desc         board.Description
	board        *board.Board
	active       map[string]*Player
	disconnected map[string]disconnectedPlayer
	entities     map[string]*Entity
	score        int
	running      bool
	bus          *events.Bus
	log          *zap.Logger
}

// NewEngine builds the board from the description and starts with an empty,
// running game. The description is retained so Reset can rebuild the board.
func NewEngine(desc board.Description, bus *events.Bus, log *zap.Logger) (*Engine, error) {
	b, err := board.New(desc)
	if err != nil {
		return nil, err
	}
	return &Engine{
		desc:         desc,
		board:        b,
		active:       make(map[string]*Player),
		disconnected: make(map[string]disconnectedPlayer),
		entities:     make(map[string]*Entity),
		running:      true,
		bus:          bus,
		log:          log,
	}, nil
}

// DefaultSpawnHint is the board center, the placement hint used when a client
// joins without history.
func (e *Engine) DefaultSpawnHint() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.board.Width() / 2, e.board.Height() / 2
}

// AddPlayer places a new player at the hint cell, spiral-searching outward
// when the hint is taken. The returned PlayerJoined event is not published
// here; the caller publishes it after the CONNECT ack has been queued, so the
// joining client always sees its ack first.
func (e *Engine) AddPlayer(playerID, playerName, clientID string, hintX, hintY int, now time.Time) (Player, events.PlayerJoined, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[playerID]; ok {
		return Player{}, events.PlayerJoined{}, fmt.Errorf("add player %s: %w", playerID, ErrPlayerExists)
	}
	if _, ok := e.disconnected[playerID]; ok {
		return Player{}, events.PlayerJoined{}, fmt.Errorf("add player %s: %w", playerID, ErrPlayerExists)
	}

	x, y, err := findSpawn(e.board, e.active, hintX, hintY)
	if err != nil {
		return Player{}, events.PlayerJoined{}, err
	}

	p := &Player{
		ID:           playerID,
		Name:         playerName,
		ClientID:     clientID,
		X:            x,
		Y:            y,
		ConnectedAt:  now,
		LastActivity: now,
	}
	e.active[playerID] = p

	e.log.Info("player added",
		zap.String("player_id", playerID),
		zap.String("player_name", playerName),
		zap.Int("x", x),
		zap.Int("y", y))

	joined := events.PlayerJoined{
		ClientID:   clientID,
		PlayerID:   playerID,
		PlayerName: playerName,
		X:          x,
		Y:          y,
	}
	return *p, joined, nil
}

// RestorePlayer moves a disconnected player back to the active set under a
// fresh client ID. The recorded position is kept when still free; otherwise
// the spiral search relocates the player deterministically. Expired entries
// are dropped and reported as ErrGraceExpired so the caller can fall back to
// a brand-new join.
func (e *Engine) RestorePlayer(playerID, newClientID string, now time.Time, grace time.Duration) (Player, events.PlayerJoined, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.disconnected[playerID]
	if !ok {
		return Player{}, events.PlayerJoined{}, fmt.Errorf("restore player %s: %w", playerID, ErrNoSuchPlayer)
	}
	if now.Sub(entry.at) > grace {
		delete(e.disconnected, playerID)
		return Player{}, events.PlayerJoined{}, fmt.Errorf("restore player %s: %w", playerID, ErrGraceExpired)
	}

	p := entry.player
	if !e.cellFreeForPlayer(p.X, p.Y) {
		x, y, err := findSpawn(e.board, e.active, p.X, p.Y)
		if err != nil {
			return Player{}, events.PlayerJoined{}, err
		}
		p.X, p.Y = x, y
	}

	delete(e.disconnected, playerID)
	p.ClientID = newClientID
	p.LastActivity = now
	e.active[playerID] = p

	e.log.Info("player restored",
		zap.String("player_id", playerID),
		zap.String("client_id", newClientID),
		zap.Int("x", p.X),
		zap.Int("y", p.Y))

	joined := events.PlayerJoined{
		ClientID:       newClientID,
		PlayerID:       playerID,
		PlayerName:     p.Name,
		X:              p.X,
		Y:              p.Y,
		IsReconnection: true,
	}
	return *p, joined, nil
}

// IsActive reports whether a player is currently on the board.
func (e *Engine) IsActive(playerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[playerID]
	return ok
}

// TakeOverPlayer rebinds an active player to a new connection. This is the
// reconnect path for a player that never reached the disconnected registry,
// meaning the old transport was still open when the new CONNECT arrived; the
// caller is responsible for closing the old connection.
func (e *Engine) TakeOverPlayer(playerID, newClientID string, now time.Time) (Player, events.PlayerJoined, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.active[playerID]
	if !ok {
		return Player{}, events.PlayerJoined{}, fmt.Errorf("take over player %s: %w", playerID, ErrNoSuchPlayer)
	}
	p.ClientID = newClientID
	p.LastActivity = now

	e.log.Info("player taken over",
		zap.String("player_id", playerID),
		zap.String("client_id", newClientID))

	joined := events.PlayerJoined{
		ClientID:       newClientID,
		PlayerID:       playerID,
		PlayerName:     p.Name,
		X:              p.X,
		Y:              p.Y,
		IsReconnection: true,
	}
	return *p, joined, nil
}

// RemovePlayer takes an active player off the board. A disconnect parks the
// player in the grace registry; a quit is permanent. Emits PLAYER_LEFT.
func (e *Engine) RemovePlayer(playerID string, reason RemoveReason, now time.Time) error {
	e.mu.Lock()
	p, ok := e.active[playerID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("remove player %s: %w", playerID, ErrNoSuchPlayer)
	}

	delete(e.active, playerID)
	if reason == RemoveDisconnect {
		p.ClientID = ""
		e.disconnected[playerID] = disconnectedPlayer{player: p, at: now}
	}
	e.mu.Unlock()

	e.log.Info("player removed",
		zap.String("player_id", playerID),
		zap.String("reason", string(reason)))

	e.bus.Publish(events.PlayerLeft{PlayerID: playerID})
	return nil
}

// MovePlayer validates and applies a one-step move. On rejection it emits a
// Bump event targeted at the player's connection and leaves state untouched.
// The verdict is returned either way.
func (e *Engine) MovePlayer(playerID string, dx, dy int, now time.Time) (Verdict, error) {
	e.mu.Lock()

	if !e.running {
		e.mu.Unlock()
		return Verdict{}, ErrNotRunning
	}
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 || (dx == 0 && dy == 0) {
		e.mu.Unlock()
		return Verdict{}, ErrInvalidDelta
	}
	p, ok := e.active[playerID]
	if !ok {
		e.mu.Unlock()
		return Verdict{}, fmt.Errorf("move player %s: %w", playerID, ErrNoSuchPlayer)
	}

	verdict := ValidateMove(e.board, e.active, playerID, dx, dy)
	var bump events.Bump
	if verdict.OK() {
		p.X, p.Y = verdict.X, verdict.Y
		p.LastActivity = now
	} else {
		bump = events.Bump{
			ClientID:      p.ClientID,
			PlayerID:      playerID,
			Kind:          bumpKind(verdict.Code),
			AttemptedX:    verdict.X,
			AttemptedY:    verdict.Y,
			CurrentX:      p.X,
			CurrentY:      p.Y,
			OtherPlayerID: verdict.OtherPlayerID,
			OtherEntityID: verdict.OtherEntityID,
			At:            now,
		}
	}
	e.mu.Unlock()

	if !verdict.OK() {
		e.bus.Publish(bump)
	}
	return verdict, nil
}

func bumpKind(code VerdictCode) events.BumpKind {
	switch code {
	case VerdictWall:
		return events.BumpWall
	case VerdictPlayer:
		return events.BumpPlayer
	case VerdictEntity:
		return events.BumpEntity
	default:
		return events.BumpOutOfBounds
	}
}

// SetPlayerName updates an active player's display name.
func (e *Engine) SetPlayerName(playerID, name string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.active[playerID]
	if !ok {
		return fmt.Errorf("set name for player %s: %w", playerID, ErrNoSuchPlayer)
	}
	p.Name = name
	p.LastActivity = now
	return nil
}

// SpawnEntity creates an entity and pushes its reference into the target
// cell's queue. Solid entities are rejected when the cell already holds one.
func (e *Engine) SpawnEntity(entityType string, x, y int, solid bool, glyph board.Glyph, zOrder int) (Entity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.board.InBounds(x, y) {
		return Entity{}, fmt.Errorf("spawn %s at (%d,%d): %w", entityType, x, y, ErrOutOfBounds)
	}

	entityID := uuid.New().String()
	if err := e.board.PushEntity(entityID, x, y, solid, zOrder); err != nil {
		return Entity{}, fmt.Errorf("spawn %s at (%d,%d): %w", entityType, x, y, ErrEntityConflict)
	}

	ent := &Entity{
		ID:     entityID,
		Type:   entityType,
		X:      x,
		Y:      y,
		Solid:  solid,
		Glyph:  glyph,
		ZOrder: zOrder,
	}
	e.entities[entityID] = ent

	e.log.Info("entity spawned",
		zap.String("entity_id", entityID),
		zap.String("entity_type", entityType),
		zap.Int("x", x),
		zap.Int("y", y),
		zap.Bool("solid", solid))

	return *ent, nil
}

// DespawnEntity removes an entity from the entity map and from its cell.
// Unknown IDs are logged and reported; callers may treat that as a no-op.
func (e *Engine) DespawnEntity(entityID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities[entityID]
	if !ok {
		e.log.Warn("despawn of unknown entity", zap.String("entity_id", entityID))
		return fmt.Errorf("despawn entity %s: %w", entityID, ErrNoSuchEntity)
	}
	e.board.RemoveEntity(entityID, ent.X, ent.Y)
	delete(e.entities, entityID)
	return nil
}

// SetRunning toggles whether moves are accepted. No wire operation drives
// this today; it is the hook an admin surface would use. Reset always brings
// the game back to running.
func (e *Engine) SetRunning(running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = running
}

// AddScore adjusts the shared score and returns the new value. The score
// only changes through this call; no wire operation awards points yet.
func (e *Engine) AddScore(delta int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.score += delta
	return e.score
}

// PurgeExpired drops disconnected players whose grace period has elapsed.
// Idempotent for a fixed (now, grace). Returns the number of players dropped.
func (e *Engine) PurgeExpired(now time.Time, grace time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	purged := 0
	for id, entry := range e.disconnected {
		if now.Sub(entry.at) > grace {
			delete(e.disconnected, id)
			purged++
			e.log.Info("disconnected player purged", zap.String("player_id", id))
		}
	}
	return purged
}

// Reset rebuilds the board from the original description and clears players,
// entities and score. The caller is responsible for broadcasting the fresh
// state.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := board.New(e.desc)
	if err != nil {
		return err
	}
	e.board = b
	e.active = make(map[string]*Player)
	e.disconnected = make(map[string]disconnectedPlayer)
	e.entities = make(map[string]*Entity)
	e.score = 0
	e.running = true

	e.log.Info("game reset")
	return nil
}

// cellFreeForPlayer reports whether a player may stand at (x, y). Caller must
// hold the mutex.
func (e *Engine) cellFreeForPlayer(x, y int) bool {
	if !e.board.InBounds(x, y) || e.board.IsWall(x, y) {
		return false
	}
	if _, occupied := e.board.SolidEntityAt(x, y); occupied {
		return false
	}
	for _, p := range e.active {
		if p.X == x && p.Y == y {
			return false
		}
	}
	return true
}
