package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridwalk/server/internal/board"
	"github.com/gridwalk/server/internal/events"
)

func newTestEngine(t *testing.T) (*Engine, *events.Bus) {
	t.Helper()
	bus := events.NewBus(128)
	engine, err := NewEngine(board.DefaultDescription(), bus, zap.NewNop())
	require.NoError(t, err)
	return engine, bus
}

func collectEvents(t *testing.T, bus *events.Bus) <-chan events.Event {
	t.Helper()
	ch := make(chan events.Event, 64)
	require.NoError(t, bus.Subscribe(func(ev events.Event) {
		ch <- ev
	}))
	return ch
}

func waitForEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestAddPlayerPlacesAtHint(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	p, joined, err := engine.AddPlayer("p1", "alice", "c1", 30, 12, now)
	require.NoError(t, err)
	assert.Equal(t, 30, p.X)
	assert.Equal(t, 12, p.Y)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, "c1", joined.ClientID)
	assert.False(t, joined.IsReconnection)
}

func TestAddPlayerSpiralsWhenHintTaken(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 30, 12, now)
	require.NoError(t, err)

	p2, _, err := engine.AddPlayer("p2", "bob", "c2", 30, 12, now)
	require.NoError(t, err)
	assert.Equal(t, 31, p2.X)
	assert.Equal(t, 12, p2.Y)
}

func TestAddPlayerRejectsKnownID(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 30, 12, now)
	require.NoError(t, err)

	_, _, err = engine.AddPlayer("p1", "alice again", "c2", 30, 12, now)
	assert.ErrorIs(t, err, ErrPlayerExists)
}

func TestMovePlayerUpdatesPosition(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()
	_, _, err := engine.AddPlayer("p1", "alice", "c1", 30, 12, now)
	require.NoError(t, err)

	verdict, err := engine.MovePlayer("p1", 1, 0, now)
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, verdict.Code)

	snap := engine.Snapshot()
	require.Len(t, snap.Players, 1)
	assert.Equal(t, 31, snap.Players[0].X)
	assert.Equal(t, 12, snap.Players[0].Y)
}

func TestMovePlayerInvalidDeltas(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()
	_, _, err := engine.AddPlayer("p1", "alice", "c1", 30, 12, now)
	require.NoError(t, err)

	for _, d := range [][2]int{{0, 0}, {2, 0}, {0, -2}, {-3, 1}} {
		_, err := engine.MovePlayer("p1", d[0], d[1], now)
		assert.ErrorIs(t, err, ErrInvalidDelta, "delta %v", d)
	}
}

func TestMovePlayerNotRunning(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()
	_, _, err := engine.AddPlayer("p1", "alice", "c1", 30, 12, now)
	require.NoError(t, err)

	engine.SetRunning(false)
	_, err = engine.MovePlayer("p1", 1, 0, now)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestMovePlayerUnknown(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.MovePlayer("ghost", 1, 0, time.Now())
	assert.ErrorIs(t, err, ErrNoSuchPlayer)
}

func TestMoveIntoPlayerEmitsTargetedBump(t *testing.T) {
	engine, bus := newTestEngine(t)
	ch := collectEvents(t, bus)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 30, 12, now)
	require.NoError(t, err)
	_, _, err = engine.AddPlayer("p2", "bob", "c2", 31, 12, now)
	require.NoError(t, err)

	verdict, err := engine.MovePlayer("p1", 1, 0, now)
	require.NoError(t, err)
	assert.Equal(t, VerdictPlayer, verdict.Code)
	assert.Equal(t, "p2", verdict.OtherPlayerID)

	ev := waitForEvent(t, ch)
	bump, ok := ev.(events.Bump)
	require.True(t, ok, "expected a bump, got %T", ev)
	assert.Equal(t, "c1", bump.ClientID)
	assert.Equal(t, events.BumpPlayer, bump.Kind)
	assert.Equal(t, "p2", bump.OtherPlayerID)
	assert.Equal(t, 31, bump.AttemptedX)
	assert.Equal(t, 30, bump.CurrentX)

	// Neither player moved.
	snap := engine.Snapshot()
	for _, p := range snap.Players {
		switch p.PlayerID {
		case "p1":
			assert.Equal(t, 30, p.X)
		case "p2":
			assert.Equal(t, 31, p.X)
		}
	}
}

func TestMoveIntoWallEmitsWallBump(t *testing.T) {
	engine, bus := newTestEngine(t)
	ch := collectEvents(t, bus)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 1, 1, now)
	require.NoError(t, err)

	verdict, err := engine.MovePlayer("p1", -1, 0, now)
	require.NoError(t, err)
	assert.Equal(t, VerdictWall, verdict.Code)

	bump := waitForEvent(t, ch).(events.Bump)
	assert.Equal(t, events.BumpWall, bump.Kind)
}

func TestDisconnectAndRestoreKeepsPosition(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	require.NoError(t, engine.RemovePlayer("p1", RemoveDisconnect, now))

	restored, joined, err := engine.RestorePlayer("p1", "c2", now.Add(20*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 10, restored.X)
	assert.Equal(t, 10, restored.Y)
	assert.Equal(t, "c2", restored.ClientID)
	assert.True(t, joined.IsReconnection)
}

func TestRestoreRelocatesWhenCellTaken(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	require.NoError(t, engine.RemovePlayer("p1", RemoveDisconnect, now))

	// Someone else takes the vacated cell.
	_, _, err = engine.AddPlayer("p2", "bob", "c2", 10, 10, now)
	require.NoError(t, err)

	restored, _, err := engine.RestorePlayer("p1", "c3", now.Add(time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 11, restored.X, "spiral relocation from the taken cell")
	assert.Equal(t, 10, restored.Y)
}

func TestRestoreAfterGraceFails(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	require.NoError(t, engine.RemovePlayer("p1", RemoveDisconnect, now))

	_, _, err = engine.RestorePlayer("p1", "c2", now.Add(time.Minute+time.Millisecond), time.Minute)
	assert.ErrorIs(t, err, ErrGraceExpired)

	// The expired entry is gone; a second attempt reports an unknown player.
	_, _, err = engine.RestorePlayer("p1", "c2", now.Add(time.Minute+time.Millisecond), time.Minute)
	assert.ErrorIs(t, err, ErrNoSuchPlayer)
}

func TestRestoreAtGraceBoundarySucceeds(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	require.NoError(t, engine.RemovePlayer("p1", RemoveDisconnect, now))

	_, _, err = engine.RestorePlayer("p1", "c2", now.Add(time.Minute), time.Minute)
	assert.NoError(t, err)
}

func TestTakeOverPlayerRebindsConnection(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)

	taken, joined, err := engine.TakeOverPlayer("p1", "c2", now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "c2", taken.ClientID)
	assert.Equal(t, 10, taken.X)
	assert.Equal(t, 10, taken.Y)
	assert.True(t, joined.IsReconnection)
	assert.Equal(t, "c2", joined.ClientID)

	// Still one active player, never parked.
	snap := engine.Snapshot()
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "c2", snap.Players[0].ClientID)
}

func TestTakeOverUnknownPlayer(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, _, err := engine.TakeOverPlayer("ghost", "c1", time.Now())
	assert.ErrorIs(t, err, ErrNoSuchPlayer)
}

func TestTakeOverParkedPlayerFails(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	require.NoError(t, engine.RemovePlayer("p1", RemoveDisconnect, now))

	// Parked players go through RestorePlayer, not a takeover.
	_, _, err = engine.TakeOverPlayer("p1", "c2", now)
	assert.ErrorIs(t, err, ErrNoSuchPlayer)
}

func TestIsActive(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	assert.False(t, engine.IsActive("p1"))
	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	assert.True(t, engine.IsActive("p1"))

	require.NoError(t, engine.RemovePlayer("p1", RemoveDisconnect, now))
	assert.False(t, engine.IsActive("p1"), "parked players are not active")
}

func TestRemovePlayerQuitIsPermanent(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	require.NoError(t, engine.RemovePlayer("p1", RemoveQuit, now))

	_, _, err = engine.RestorePlayer("p1", "c2", now, time.Minute)
	assert.ErrorIs(t, err, ErrNoSuchPlayer)
}

func TestRemovePlayerEmitsPlayerLeft(t *testing.T) {
	engine, bus := newTestEngine(t)
	ch := collectEvents(t, bus)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	require.NoError(t, engine.RemovePlayer("p1", RemoveDisconnect, now))

	left := waitForEvent(t, ch).(events.PlayerLeft)
	assert.Equal(t, "p1", left.PlayerID)
}

func TestPurgeExpiredIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	require.NoError(t, engine.RemovePlayer("p1", RemoveDisconnect, now))

	cutoff := now.Add(2 * time.Minute)
	assert.Equal(t, 1, engine.PurgeExpired(cutoff, time.Minute))
	assert.Equal(t, 0, engine.PurgeExpired(cutoff, time.Minute))
}

func TestSpawnAndDespawnEntity(t *testing.T) {
	engine, _ := newTestEngine(t)

	ent, err := engine.SpawnEntity("chest", 5, 5, true, board.Glyph{Char: "▯", Color: "#c8a232"}, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, ent.ID)

	// A second solid entity in the same cell conflicts.
	_, err = engine.SpawnEntity("rock", 5, 5, true, board.Glyph{Char: "o"}, 0)
	assert.ErrorIs(t, err, ErrEntityConflict)

	// Non-solid entities share the cell.
	_, err = engine.SpawnEntity("sparkle", 5, 5, false, board.Glyph{Char: "*"}, 2)
	assert.NoError(t, err)

	require.NoError(t, engine.DespawnEntity(ent.ID))
	_, err = engine.SpawnEntity("rock", 5, 5, true, board.Glyph{Char: "o"}, 0)
	assert.NoError(t, err, "despawn frees the solid slot")
}

func TestSpawnEntityOutOfBounds(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.SpawnEntity("chest", -1, 5, true, board.Glyph{Char: "▯"}, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestDespawnUnknownEntity(t *testing.T) {
	engine, _ := newTestEngine(t)
	assert.ErrorIs(t, engine.DespawnEntity("nope"), ErrNoSuchEntity)
}

func TestSnapshotShape(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p2", "bob", "c2", 12, 12, now)
	require.NoError(t, err)
	_, _, err = engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	_, err = engine.SpawnEntity("chest", 5, 5, true, board.Glyph{Char: "▯"}, 1)
	require.NoError(t, err)

	snap := engine.Snapshot()
	assert.Equal(t, 60, snap.Board.Width)
	assert.Equal(t, 25, snap.Board.Height)
	assert.True(t, snap.Running)
	assert.Equal(t, 0, snap.Score)

	require.Len(t, snap.Players, 2)
	assert.Equal(t, "p1", snap.Players[0].PlayerID, "players sorted by ID")
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, "chest", snap.Entities[0].EntityType)

	// The grid carries base characters only.
	assert.Equal(t, " ", snap.Board.Grid[10][10])
	assert.Equal(t, " ", snap.Board.Grid[5][5])
	assert.Equal(t, "#", snap.Board.Grid[0][0])
}

func TestResetClearsEverything(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	_, _, err := engine.AddPlayer("p1", "alice", "c1", 10, 10, now)
	require.NoError(t, err)
	_, err = engine.SpawnEntity("chest", 5, 5, true, board.Glyph{Char: "▯"}, 1)
	require.NoError(t, err)
	engine.AddScore(7)
	engine.SetRunning(false)

	require.NoError(t, engine.Reset())

	snap := engine.Snapshot()
	assert.Empty(t, snap.Players)
	assert.Empty(t, snap.Entities)
	assert.Equal(t, 0, snap.Score)
	assert.True(t, snap.Running)
}
