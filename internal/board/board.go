// Package board holds the static 2D grid the game is played on: base
// characters (wall / empty space) plus per-cell entity queues. Players are
// tracked by the engine, never by cells.
package board

import (
	"errors"
	"fmt"
)

// Base character sentinels. Glyph index 0 maps to Empty, index 1 to Wall.
const (
	EmptyChar = ' '
	WallChar  = '#'
)

var (
	ErrOutOfBounds    = errors.New("out of bounds")
	ErrEntityConflict = errors.New("cell already holds a solid entity")
)

// Glyph is the visual representation of an entity. Color is an optional
// 24-bit tag in "#RRGGBB" form; the server never interprets it.
type Glyph struct {
	Char  string `json:"char"`
	Color string `json:"color,omitempty"`
}

// EntityRef is a weak reference held by a cell. Cells never own entities;
// lookup goes through the engine's entity map by ID.
type EntityRef struct {
	EntityID string
	Solid    bool
	ZOrder   int
}

// Cell is one grid position: a fixed base character plus an ordered entity
// queue. At most one queued entity is solid.
type Cell struct {
	base  rune
	queue []EntityRef
}

// Board is a fixed-size grid of cells. Dimensions never change after New.
type Board struct {
	width  int
	height int
	cells  [][]Cell // indexed [y][x]
}

// New builds a board from a validated description. Glyph indices other than
// the two base sentinels are treated as empty space; richer glyphs are a
// client-side concern.
func New(desc Description) (*Board, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	indices := desc.Expand()
	cells := make([][]Cell, desc.Height)
	for y := 0; y < desc.Height; y++ {
		cells[y] = make([]Cell, desc.Width)
		for x := 0; x < desc.Width; x++ {
			base := EmptyChar
			if indices[y*desc.Width+x] == GlyphWall {
				base = WallChar
			}
			cells[y][x] = Cell{base: rune(base)}
		}
	}

	return &Board{width: desc.Width, height: desc.Height, cells: cells}, nil
}

func (b *Board) Width() int  { return b.width }
func (b *Board) Height() int { return b.height }

// InBounds reports whether (x, y) lies on the board.
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// BaseChar returns the base character at (x, y), or the zero rune when the
// coordinates are off the board.
func (b *Board) BaseChar(x, y int) rune {
	if !b.InBounds(x, y) {
		return 0
	}
	return b.cells[y][x].base
}

// IsWall reports whether the base character at (x, y) is the wall sentinel.
func (b *Board) IsWall(x, y int) bool {
	return b.BaseChar(x, y) == WallChar
}

// SolidEntityAt returns the solid entity occupying (x, y), if any.
func (b *Board) SolidEntityAt(x, y int) (EntityRef, bool) {
	if !b.InBounds(x, y) {
		return EntityRef{}, false
	}
	for _, ref := range b.cells[y][x].queue {
		if ref.Solid {
			return ref, true
		}
	}
	return EntityRef{}, false
}

// EntitiesAt returns a copy of the entity queue at (x, y) in insertion order.
func (b *Board) EntitiesAt(x, y int) []EntityRef {
	if !b.InBounds(x, y) {
		return nil
	}
	q := b.cells[y][x].queue
	out := make([]EntityRef, len(q))
	copy(out, q)
	return out
}

// PushEntity appends an entity reference to the cell queue. A second solid
// entity in the same cell is rejected.
func (b *Board) PushEntity(entityID string, x, y int, solid bool, zOrder int) error {
	if !b.InBounds(x, y) {
		return fmt.Errorf("push entity %s at (%d,%d): %w", entityID, x, y, ErrOutOfBounds)
	}
	if solid {
		if occ, ok := b.SolidEntityAt(x, y); ok {
			return fmt.Errorf("push entity %s at (%d,%d) over %s: %w", entityID, x, y, occ.EntityID, ErrEntityConflict)
		}
	}
	cell := &b.cells[y][x]
	cell.queue = append(cell.queue, EntityRef{EntityID: entityID, Solid: solid, ZOrder: zOrder})
	return nil
}

// RemoveEntity deletes the reference with the given ID from the cell queue.
// Removing an absent entity is a no-op.
func (b *Board) RemoveEntity(entityID string, x, y int) {
	if !b.InBounds(x, y) {
		return
	}
	cell := &b.cells[y][x]
	for i, ref := range cell.queue {
		if ref.EntityID == entityID {
			cell.queue = append(cell.queue[:i], cell.queue[i+1:]...)
			return
		}
	}
}

// Grid serializes the base characters as a height×width matrix. Entities and
// players never appear here.
func (b *Board) Grid() [][]string {
	grid := make([][]string, b.height)
	for y := 0; y < b.height; y++ {
		row := make([]string, b.width)
		for x := 0; x < b.width; x++ {
			row[x] = string(b.cells[y][x].base)
		}
		grid[y] = row
	}
	return grid
}
