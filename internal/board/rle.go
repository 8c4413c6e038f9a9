package board

import (
	"encoding/json"
	"fmt"
	"os"
)

// Glyph indices the server assigns meaning to. Anything above GlyphWall is
// decorative and renders as empty space server-side.
const (
	GlyphEmpty = 0
	GlyphWall  = 1
)

// AllowedDimensions is the published allow-list of board sizes.
var AllowedDimensions = [][2]int{{60, 25}}

// Run is one run-length-encoded span of identical glyph indices. Repeat is
// omitted for single cells and must be at least 2 when present.
type Run struct {
	Entity int `json:"entity"`
	Repeat int `json:"repeat,omitempty"`
}

// Description is the RLE-JSON map format consumed at startup: a row-major
// sequence of Width*Height glyph indices.
type Description struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Cells  []Run `json:"cells"`
}

// DecodeDescription parses and validates an RLE-JSON map document.
func DecodeDescription(data []byte) (Description, error) {
	var desc Description
	if err := json.Unmarshal(data, &desc); err != nil {
		return Description{}, fmt.Errorf("parse board description: %w", err)
	}
	if err := desc.Validate(); err != nil {
		return Description{}, err
	}
	return desc, nil
}

// EncodeDescription serializes a description back to RLE-JSON. Decoding and
// re-encoding preserves the original run structure.
func EncodeDescription(desc Description) ([]byte, error) {
	return json.Marshal(desc)
}

// LoadFile reads and decodes a map file.
func LoadFile(path string) (Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Description{}, fmt.Errorf("read map file %s: %w", path, err)
	}
	return DecodeDescription(data)
}

// Validate checks dimensions against the allow-list and the run structure
// against the total cell count.
func (d Description) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("board dimensions %dx%d are not positive", d.Width, d.Height)
	}

	allowed := false
	for _, dims := range AllowedDimensions {
		if d.Width == dims[0] && d.Height == dims[1] {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("board dimensions %dx%d are not in the allow-list", d.Width, d.Height)
	}

	total := 0
	for i, run := range d.Cells {
		if run.Entity < 0 {
			return fmt.Errorf("cells[%d]: negative glyph index %d", i, run.Entity)
		}
		switch {
		case run.Repeat == 0:
			total++
		case run.Repeat >= 2:
			total += run.Repeat
		default:
			return fmt.Errorf("cells[%d]: repeat must be absent or >= 2, got %d", i, run.Repeat)
		}
	}
	if total != d.Width*d.Height {
		return fmt.Errorf("cells encode %d positions, want %d", total, d.Width*d.Height)
	}
	return nil
}

// Expand flattens the runs into Width*Height glyph indices in row-major order.
func (d Description) Expand() []int {
	indices := make([]int, 0, d.Width*d.Height)
	for _, run := range d.Cells {
		n := run.Repeat
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			indices = append(indices, run.Entity)
		}
	}
	return indices
}

// Compact run-length-encodes a flat glyph index sequence.
func Compact(indices []int) []Run {
	var runs []Run
	for i := 0; i < len(indices); {
		j := i
		for j < len(indices) && indices[j] == indices[i] {
			j++
		}
		run := Run{Entity: indices[i]}
		if j-i >= 2 {
			run.Repeat = j - i
		}
		runs = append(runs, run)
		i = j
	}
	return runs
}

// DefaultDescription is the built-in 60x25 map: a solid wall border around
// empty space. Used when no MAP_FILE is configured.
func DefaultDescription() Description {
	const w, h = 60, 25
	indices := make([]int, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x == 0 || x == w-1 || y == 0 || y == h-1 {
				indices = append(indices, GlyphWall)
			} else {
				indices = append(indices, GlyphEmpty)
			}
		}
	}
	return Description{Width: w, Height: h, Cells: Compact(indices)}
}
