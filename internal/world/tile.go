// Package world provides the rectangular tile grid, positions, and the
// passes that mutate it (outside connection, zone growth, generation).
// Positions are row-major: Row is y, Col is x.
package world

import "fmt"

// TileKind is the categorical label of a grid cell.
type TileKind uint8

const (
	TileEmpty           TileKind = iota // Undeveloped land
	TileRoad                            // Walkable and drivable
	TileHouse                           // Residential building, one household
	TileFactory                         // Industrial building, one job
	TileZoneResidential                 // Marked for a future house
	TileZoneIndustrial                  // Marked for a future factory
)

// NumTileKinds is the number of tile kinds.
const NumTileKinds = 6

var tileLabels = [NumTileKinds]string{
	"empty",
	"road",
	"house",
	"factory",
	"zone_residential",
	"zone_industrial",
}

// String returns the persisted label of the tile kind.
func (k TileKind) String() string {
	if int(k) < len(tileLabels) {
		return tileLabels[k]
	}
	return fmt.Sprintf("tile(%d)", uint8(k))
}

var tileGlyphs = [NumTileKinds]byte{'.', '#', 'H', 'F', 'r', 'i'}

// Glyph returns the one-character map symbol of the tile kind.
func (k TileKind) Glyph() byte {
	if int(k) < len(tileGlyphs) {
		return tileGlyphs[k]
	}
	return '?'
}

// ParseTileKind converts a label back to a TileKind. The legacy label
// "grass" is read as empty.
func ParseTileKind(label string) (TileKind, error) {
	if label == "grass" {
		return TileEmpty, nil
	}
	for i, l := range tileLabels {
		if l == label {
			return TileKind(i), nil
		}
	}
	return TileEmpty, fmt.Errorf("unknown tile kind %q", label)
}

// MarshalText implements encoding.TextMarshaler so grids serialize as labels.
func (k TileKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TileKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTileKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KindSet is a set of tile kinds, used as a traversability predicate.
type KindSet [NumTileKinds]bool

// Kinds builds a KindSet from the given kinds.
func Kinds(kinds ...TileKind) KindSet {
	var s KindSet
	for _, k := range kinds {
		if int(k) < NumTileKinds {
			s[k] = true
		}
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k TileKind) bool {
	return int(k) < NumTileKinds && s[k]
}

// Position is a tile coordinate. Equality and hashing are by value.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Pos is shorthand for Position{Row: row, Col: col}.
func Pos(row, col int) Position {
	return Position{Row: row, Col: col}
}

// String returns "(row,col)".
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Directions lists the four neighbor offsets in expansion order:
// up, down, left, right. Searches that must agree on tie-breaking use it.
var Directions = [4]Position{
	{Row: -1, Col: 0},
	{Row: 1, Col: 0},
	{Row: 0, Col: -1},
	{Row: 0, Col: 1},
}

// Neighbors returns the four adjacent positions in Directions order.
// Results may be out of bounds.
func (p Position) Neighbors() [4]Position {
	var result [4]Position
	for i, d := range Directions {
		result[i] = Position{Row: p.Row + d.Row, Col: p.Col + d.Col}
	}
	return result
}

// Manhattan returns the grid distance between two positions.
func Manhattan(a, b Position) int {
	dr := a.Row - b.Row
	dc := a.Col - b.Col
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}
