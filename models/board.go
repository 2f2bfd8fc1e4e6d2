// models/board.go
package models

import (
	"fmt"
	"math"
)

// CellValue is the value stored at one board coordinate: an orb of a
// given level (1..3) and owning color, together with the coordinate it
// belongs to.
type CellValue struct {
	Level int    `json:"level"`
	Color string `json:"color"`
	X     int    `json:"boardCoordinateX"`
	Y     int    `json:"boardCoordinateY"`
}

// Board maps the Cantor pairing value of a cell coordinate to its value.
// Keying by a single integer keeps the stored JSON flat; the pairing is
// invertible so nothing is lost.
type Board map[int]CellValue

// CantorValue maps a pair of non-negative coordinates to a single
// non-negative integer. z = (x+y)(x+y+1)/2 + y.
func CantorValue(x, y int) int {
	return (x+y)*(x+y+1)/2 + y
}

// InverseCantorValue recovers the coordinates encoded by CantorValue.
func InverseCantorValue(z int) (x, y int) {
	w := int(math.Floor(0.5 * (math.Sqrt(8*float64(z)+1) - 1)))
	y = z - w*(w+1)/2
	x = w - y
	return x, y
}

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	if b == nil {
		return nil
	}
	out := make(Board, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Validate checks every cell: level within 1..3 and the map key
// consistent with the cell's own coordinates.
func (b Board) Validate() error {
	for key, cell := range b {
		if cell.Level < 1 || cell.Level > 3 {
			return fmt.Errorf("board cell %d: level %d out of range", key, cell.Level)
		}
		if cell.X < 0 || cell.Y < 0 {
			return fmt.Errorf("board cell %d: negative coordinate (%d,%d)", key, cell.X, cell.Y)
		}
		if CantorValue(cell.X, cell.Y) != key {
			return fmt.Errorf("board cell %d: key does not encode coordinate (%d,%d)", key, cell.X, cell.Y)
		}
	}
	return nil
}
