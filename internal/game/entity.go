package game

import "github.com/gridwalk/server/internal/board"

// Entity is a non-player object on the board. The engine owns entities; cells
// hold weak references by ID.
type Entity struct {
	ID     string
	Type   string
	X      int
	Y      int
	Solid  bool
	Glyph  board.Glyph
	ZOrder int
}
