package world

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

var (
	ErrOutOfBounds       = errors.New("position out of bounds")
	ErrDimensionMismatch = errors.New("grid dimensions do not match")
)

// Reader is the read side of a grid, all the searches need.
type Reader interface {
	Dims() (rows, cols int)
	InBounds(p Position) bool
	Kind(p Position) TileKind
}

// Grid holds the tile kinds of a fixed rows×cols map.
type Grid struct {
	rows  int
	cols  int
	tiles []TileKind // row-major
}

// NewGrid creates an all-empty grid. Non-positive dimensions are clamped to 1.
func NewGrid(rows, cols int) *Grid {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return &Grid{
		rows:  rows,
		cols:  cols,
		tiles: make([]TileKind, rows*cols),
	}
}

// Dims returns the grid dimensions.
func (g *Grid) Dims() (rows, cols int) {
	return g.rows, g.cols
}

// InBounds returns true if p lies on the grid.
func (g *Grid) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < g.rows && p.Col >= 0 && p.Col < g.cols
}

// Kind returns the tile kind at p, or TileEmpty when out of bounds.
// Callers that must distinguish use Get.
func (g *Grid) Kind(p Position) TileKind {
	if !g.InBounds(p) {
		return TileEmpty
	}
	return g.tiles[p.Row*g.cols+p.Col]
}

// Get returns the tile kind at (row, col).
func (g *Grid) Get(row, col int) (TileKind, error) {
	p := Position{Row: row, Col: col}
	if !g.InBounds(p) {
		return TileEmpty, fmt.Errorf("get %v: %w", p, ErrOutOfBounds)
	}
	return g.tiles[row*g.cols+col], nil
}

// Set stores a tile kind at (row, col).
func (g *Grid) Set(row, col int, kind TileKind) error {
	p := Position{Row: row, Col: col}
	if !g.InBounds(p) {
		return fmt.Errorf("set %v: %w", p, ErrOutOfBounds)
	}
	g.tiles[row*g.cols+col] = kind
	return nil
}

// Count returns the number of tiles of the given kind.
func (g *Grid) Count(kind TileKind) int {
	n := 0
	for _, k := range g.tiles {
		if k == kind {
			n++
		}
	}
	return n
}

// HasAdjacent reports whether any 4-neighbor of p is of the given kind.
func (g *Grid) HasAdjacent(p Position, kind TileKind) bool {
	for _, n := range p.Neighbors() {
		if g.InBounds(n) && g.Kind(n) == kind {
			return true
		}
	}
	return false
}

// Labels returns the grid as a rectangular array of tile labels.
func (g *Grid) Labels() [][]string {
	out := make([][]string, g.rows)
	for r := 0; r < g.rows; r++ {
		row := make([]string, g.cols)
		for c := 0; c < g.cols; c++ {
			row[c] = g.tiles[r*g.cols+c].String()
		}
		out[r] = row
	}
	return out
}

// Replace bulk-loads tile labels. The labels must match the grid's
// dimensions exactly and every label must parse; otherwise the grid is
// left untouched.
func (g *Grid) Replace(labels [][]string) error {
	if len(labels) != g.rows {
		return fmt.Errorf("%w: want %d rows, got %d", ErrDimensionMismatch, g.rows, len(labels))
	}
	next := make([]TileKind, g.rows*g.cols)
	for r, row := range labels {
		if len(row) != g.cols {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, r, len(row), g.cols)
		}
		for c, label := range row {
			kind, err := ParseTileKind(label)
			if err != nil {
				return fmt.Errorf("tile %v: %w", Pos(r, c), err)
			}
			next[r*g.cols+c] = kind
		}
	}
	g.tiles = next
	return nil
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	tiles := make([]TileKind, len(g.tiles))
	copy(tiles, g.tiles)
	return &Grid{rows: g.rows, cols: g.cols, tiles: tiles}
}

// BoundaryPositions returns the positions on the map edge whose tile is of
// the given kind, scanning top/bottom rows then left/right columns.
// Corner tiles appear once.
func (g *Grid) BoundaryPositions(kind TileKind) []Position {
	var out []Position
	seen := make(map[Position]bool)
	add := func(p Position) {
		if !seen[p] && g.Kind(p) == kind {
			seen[p] = true
			out = append(out, p)
		}
	}
	for c := 0; c < g.cols; c++ {
		add(Pos(0, c))
		add(Pos(g.rows-1, c))
	}
	for r := 0; r < g.rows; r++ {
		add(Pos(r, 0))
		add(Pos(r, g.cols-1))
	}
	return out
}

// PlaceOutsideConnection forces one random boundary tile to road: pick an
// edge, then a cell along it. Returns the chosen position.
func (g *Grid) PlaceOutsideConnection(rng *rand.Rand) Position {
	var p Position
	switch rng.Intn(4) {
	case 0: // top
		p = Pos(0, rng.Intn(g.cols))
	case 1: // bottom
		p = Pos(g.rows-1, rng.Intn(g.cols))
	case 2: // left
		p = Pos(rng.Intn(g.rows), 0)
	default: // right
		p = Pos(rng.Intn(g.rows), g.cols-1)
	}
	g.tiles[p.Row*g.cols+p.Col] = TileRoad
	return p
}

// String returns a summary of the grid.
// Render draws the grid as text, one line per row.
func (g *Grid) Render() string {
	var b strings.Builder
	b.Grow(g.rows * (g.cols + 1))
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			b.WriteByte(g.tiles[r*g.cols+c].Glyph())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, roads=%d, houses=%d, factories=%d)",
		g.rows, g.cols, g.Count(TileRoad), g.Count(TileHouse), g.Count(TileFactory))
}
