package game

import "github.com/gridwalk/server/internal/board"

// findSpawn walks an outward square spiral from the hint and returns the
// first cell that is in-bounds, not a wall, free of solid entities and free
// of active players. The walk order is fixed (right, down, left, left, up,
// up, right, right, right, ...) so two runs over the same state always pick
// the same cell.
func findSpawn(b *board.Board, players map[string]*Player, hintX, hintY int) (int, int, error) {
	admissible := func(x, y int) bool {
		if !b.InBounds(x, y) || b.IsWall(x, y) {
			return false
		}
		if _, occupied := b.SolidEntityAt(x, y); occupied {
			return false
		}
		for _, p := range players {
			if p.X == x && p.Y == y {
				return false
			}
		}
		return true
	}

	x, y := hintX, hintY
	if admissible(x, y) {
		return x, y, nil
	}

	dirs := [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
	dir := 0
	// Legs grow by one every other turn, so after run r the square covered
	// around the hint has Chebyshev radius about r/2. Running r up to twice
	// the larger dimension reaches every cell from any in-bounds hint.
	maxRun := 2 * b.Width()
	if 2*b.Height() > maxRun {
		maxRun = 2 * b.Height()
	}
	for run := 1; run <= maxRun; run++ {
		for leg := 0; leg < 2; leg++ {
			for step := 0; step < run; step++ {
				x += dirs[dir][0]
				y += dirs[dir][1]
				if admissible(x, y) {
					return x, y, nil
				}
			}
			dir = (dir + 1) % 4
		}
	}
	return 0, 0, ErrNoSpawnCell
}
