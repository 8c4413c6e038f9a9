package game

import "sort"

// Snapshot is a read-only, point-in-time copy of game state, shaped so the
// codec can build a STATE_UPDATE payload from it without further lookups.
type Snapshot struct {
	Board    BoardSnapshot    `json:"board"`
	Players  []PlayerSnapshot `json:"players"`
	Entities []EntitySnapshot `json:"entities"`
	Score    int              `json:"score"`
	Running  bool             `json:"running"`
}

// BoardSnapshot carries base characters only; players and entities are
// reported in their own lists.
type BoardSnapshot struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Grid   [][]string `json:"grid"`
}

type PlayerSnapshot struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	ClientID   string `json:"clientId"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
}

type EntitySnapshot struct {
	EntityID   string `json:"entityId"`
	EntityType string `json:"entityType"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Solid      bool   `json:"solid"`
	Glyph      string `json:"glyph"`
	Color      string `json:"color,omitempty"`
	ZOrder     int    `json:"zOrder"`
}

// Snapshot copies the current state under the engine mutex. Player and entity
// lists are sorted by ID so repeated snapshots of the same state serialize
// identically.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Board: BoardSnapshot{
			Width:  e.board.Width(),
			Height: e.board.Height(),
			Grid:   e.board.Grid(),
		},
		Players:  make([]PlayerSnapshot, 0, len(e.active)),
		Entities: make([]EntitySnapshot, 0, len(e.entities)),
		Score:    e.score,
		Running:  e.running,
	}

	for _, p := range e.active {
		snap.Players = append(snap.Players, PlayerSnapshot{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			ClientID:   p.ClientID,
			X:          p.X,
			Y:          p.Y,
		})
	}
	sort.Slice(snap.Players, func(i, j int) bool {
		return snap.Players[i].PlayerID < snap.Players[j].PlayerID
	})

	for _, ent := range e.entities {
		snap.Entities = append(snap.Entities, EntitySnapshot{
			EntityID:   ent.ID,
			EntityType: ent.Type,
			X:          ent.X,
			Y:          ent.Y,
			Solid:      ent.Solid,
			Glyph:      ent.Glyph.Char,
			Color:      ent.Glyph.Color,
			ZOrder:     ent.ZOrder,
		})
	}
	sort.Slice(snap.Entities, func(i, j int) bool {
		return snap.Entities[i].EntityID < snap.Entities[j].EntityID
	})

	return snap
}
