package envview

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a coordinate slice's length does not
// match the grid's dimensionality.
var ErrDimensionMismatch = errors.New("coordinate count does not match grid dimensions")

// ErrCoordOutOfRange is returned when a coordinate falls outside its axis.
var ErrCoordOutOfRange = errors.New("coordinate out of range")

// FlatIndex linearizes multi-dimensional coordinates into a single flat
// index using row-major order: the last coordinate varies fastest.
// dims gives the size of each axis; coords gives the position along each
// axis. Both must have the same length.
func FlatIndex(dims, coords []uint64) (uint64, error) {
	if len(dims) != len(coords) {
		return 0, fmt.Errorf("%w: %d dims, %d coords", ErrDimensionMismatch, len(dims), len(coords))
	}

	var flat uint64
	for i, d := range dims {
		c := coords[i]
		if d == 0 || c >= d {
			return 0, fmt.Errorf("%w: axis %d coord %d size %d", ErrCoordOutOfRange, i, c, d)
		}
		flat = flat*d + c
	}
	return flat, nil
}

// Coords is the inverse of FlatIndex: it recovers the multi-dimensional
// coordinates for a flat index given the grid's dimensions.
func Coords(dims []uint64, flat uint64) ([]uint64, error) {
	var total uint64 = 1
	for _, d := range dims {
		total *= d
	}
	if flat >= total {
		return nil, fmt.Errorf("%w: flat index %d exceeds grid size %d", ErrCoordOutOfRange, flat, total)
	}

	coords := make([]uint64, len(dims))
	remaining := flat
	for i := len(dims) - 1; i >= 0; i-- {
		d := dims[i]
		coords[i] = remaining % d
		remaining /= d
	}
	return coords, nil
}
