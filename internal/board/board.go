// Package board builds deterministic minefields from a shared seed.
package board

import "fmt"

// Fixed match parameters.
const (
	DefaultWidth           = 10
	DefaultHeight          = 10
	DefaultMineProbability = 0.1
)

// TileState is the player-visible state of a tile.
type TileState int

const (
	Hidden TileState = iota
	Revealed
	Flagged
)

func (s TileState) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Revealed:
		return "revealed"
	case Flagged:
		return "flagged"
	default:
		return fmt.Sprintf("TileState(%d)", int(s))
	}
}

// Position addresses a tile on the grid.
type Position struct {
	X, Y int
}

// Tile is a single cell of the minefield. IsMine and AdjacentMines never change
// after generation; State is driven by the reveal engine.
type Tile struct {
	Position
	IsMine        bool
	AdjacentMines int
	State         TileState
}

// Board is a width x height grid of tiles.
type Board struct {
	Width           int
	Height          int
	Seed            int64
	MineProbability float64
	MineCount       int

	// tiles is stored x-major: index x*Height + y.
	tiles []Tile
}

// Generate builds a board from a seed. One sample is drawn per cell with x as the
// outer loop and y as the inner loop; a cell holds a mine when its sample is below
// mineProbability. Two boards generated from the same arguments are identical.
func Generate(seed int64, width, height int, mineProbability float64) *Board {
	b := &Board{
		Width:           width,
		Height:          height,
		Seed:            seed,
		MineProbability: mineProbability,
		tiles:           make([]Tile, width*height),
	}

	rng := NewTwister(seed)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			t := b.at(x, y)
			t.Position = Position{X: x, Y: y}
			if rng.Float64() < mineProbability {
				t.IsMine = true
				b.MineCount++
			}
		}
	}

	b.countAdjacent()
	return b
}

// FromMines builds a board with mines at exactly the given positions. Positions
// outside the grid are ignored.
func FromMines(width, height int, mines ...Position) *Board {
	b := &Board{
		Width:  width,
		Height: height,
		tiles:  make([]Tile, width*height),
	}
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			b.at(x, y).Position = Position{X: x, Y: y}
		}
	}
	for _, m := range mines {
		if t := b.Tile(m.X, m.Y); t != nil && !t.IsMine {
			t.IsMine = true
			b.MineCount++
		}
	}
	b.countAdjacent()
	return b
}

func (b *Board) countAdjacent() {
	for i := range b.tiles {
		t := &b.tiles[i]
		t.AdjacentMines = 0
		for _, n := range b.Neighbors(t.X, t.Y) {
			if b.at(n.X, n.Y).IsMine {
				t.AdjacentMines++
			}
		}
	}
}

// GenerateDefault builds a board with the fixed match parameters.
func GenerateDefault(seed int64) *Board {
	return Generate(seed, DefaultWidth, DefaultHeight, DefaultMineProbability)
}

// InBounds reports whether (x, y) lies on the grid.
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.Width && y >= 0 && y < b.Height
}

// Tile returns the tile at (x, y), or nil when out of bounds.
func (b *Board) Tile(x, y int) *Tile {
	if !b.InBounds(x, y) {
		return nil
	}
	return b.at(x, y)
}

func (b *Board) at(x, y int) *Tile {
	return &b.tiles[x*b.Height+y]
}

// Neighbors returns the in-bounds positions around (x, y), excluding (x, y).
func (b *Board) Neighbors(x, y int) []Position {
	out := make([]Position, 0, 8)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if b.InBounds(x+dx, y+dy) {
				out = append(out, Position{X: x + dx, Y: y + dy})
			}
		}
	}
	return out
}

// SafeTiles returns the number of non-mine tiles.
func (b *Board) SafeTiles() int {
	return b.Width*b.Height - b.MineCount
}

// Mines returns the positions of all mines in generation order.
func (b *Board) Mines() []Position {
	mines := make([]Position, 0, b.MineCount)
	for _, t := range b.tiles {
		if t.IsMine {
			mines = append(mines, t.Position)
		}
	}
	return mines
}

// String renders the layout with '*' for mines and adjacency digits elsewhere,
// one row per x.
func (b *Board) String() string {
	buf := make([]byte, 0, (b.Height+1)*b.Width)
	for x := 0; x < b.Width; x++ {
		for y := 0; y < b.Height; y++ {
			t := b.at(x, y)
			switch {
			case t.IsMine:
				buf = append(buf, '*')
			case t.AdjacentMines == 0:
				buf = append(buf, '.')
			default:
				buf = append(buf, byte('0'+t.AdjacentMines))
			}
		}
		buf = append(buf, '\n')
	}
	return string(buf)
}
