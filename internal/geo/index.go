// Package geo provides the quadtree addressing and geodetic geometry of the globe.
package geo

import "fmt"

// Quad identifies one of the four children of a tile.
type Quad int

const (
	NorthWest Quad = iota
	NorthEast
	SouthWest
	SouthEast
)

// MaxLevel is the deepest subdivision level a tile index can address.
const MaxLevel = 30

// TileIndex addresses a quadrant of the globe at a given subdivision level.
// Level 0 holds two tiles side by side (western and eastern hemisphere), so at
// level L there are 2^(L+1) columns and 2^L rows. Y grows southward.
type TileIndex struct {
	Level int `json:"level"`
	X     int `json:"x"`
	Y     int `json:"y"`
}

// NewTileIndex creates a tile index.
func NewTileIndex(level, x, y int) TileIndex {
	return TileIndex{Level: level, X: x, Y: y}
}

// Columns returns the number of tile columns at a level.
func Columns(level int) int {
	return 2 << level
}

// Rows returns the number of tile rows at a level.
func Rows(level int) int {
	return 1 << level
}

// IsValid reports whether the index lies inside the domain of its level.
func (i TileIndex) IsValid() bool {
	if i.Level < 0 || i.Level > MaxLevel {
		return false
	}
	return i.X >= 0 && i.Y >= 0 && i.X < Columns(i.Level) && i.Y < Rows(i.Level)
}

// Child returns the index of the given child quadrant.
func (i TileIndex) Child(q Quad) TileIndex {
	return TileIndex{
		Level: i.Level + 1,
		X:     2*i.X + int(q)%2,
		Y:     2*i.Y + int(q)/2,
	}
}

// Children returns the four children in NW, NE, SW, SE order.
func (i TileIndex) Children() [4]TileIndex {
	return [4]TileIndex{
		i.Child(NorthWest),
		i.Child(NorthEast),
		i.Child(SouthWest),
		i.Child(SouthEast),
	}
}

// Parent returns the index one level up. The parent of a level 0 index is itself.
func (i TileIndex) Parent() TileIndex {
	if i.Level == 0 {
		return i
	}
	return TileIndex{Level: i.Level - 1, X: i.X / 2, Y: i.Y / 2}
}

// QuadOffset returns the position of the index inside its parent, (0|1, 0|1).
func (i TileIndex) QuadOffset() (int, int) {
	return i.X & 1, i.Y & 1
}

// String returns "level/x/y".
func (i TileIndex) String() string {
	return fmt.Sprintf("%d/%d/%d", i.Level, i.X, i.Y)
}
