package geom

import (
	"fmt"
)

// Grid provides an interface for reasoning over a 1D slice as if it were a
// 3D grid. The first axis varies fastest, so a Grid flattened with Idx is in
// column-major (Fortran) order.
type Grid struct {
	CellBounds
	Length, Area, Volume int
}

// CellBounds represents a bounding box aligned to grid cells.
type CellBounds struct {
	Origin, Width [3]int
}

// NewGrid returns a new Grid instance.
func NewGrid(origin [3]int, width [3]int) *Grid {
	g := &Grid{}
	g.Init(origin, width)
	return g
}

// NewCubeGrid returns a Grid with its origin at zero and cells cells on
// each side.
func NewCubeGrid(cells int) *Grid {
	return NewGrid([3]int{0, 0, 0}, [3]int{cells, cells, cells})
}

// Init initializes a Grid instance.
func (g *Grid) Init(origin [3]int, width [3]int) {
	g.Origin = origin
	g.Width = width

	g.Length = width[0]
	g.Area = width[0] * width[1]
	g.Volume = width[0] * width[1] * width[2]
}

// Idx returns the grid index corresponding to a set of coordinates.
func (g *Grid) Idx(x, y, z int) int {
	return ((x - g.Origin[0]) + (y-g.Origin[1])*g.Length +
		(z-g.Origin[2])*g.Area)
}

// Coords returns the x, y, z coordinates of a point from its grid index.
func (g *Grid) Coords(idx int) (x, y, z int) {
	x = idx%g.Length + g.Origin[0]
	y = (idx%g.Area)/g.Length + g.Origin[1]
	z = idx/g.Area + g.Origin[2]
	return x, y, z
}

// Wrap maps a cell index along one axis back into [0, cells) for a periodic
// box with cells cells on a side.
func Wrap(i, cells int) int {
	m := i % cells
	if m < 0 {
		m += cells
	}
	return m
}

// Intersect returns the overlap of two bounding boxes and false if they do
// not overlap at all. Boxes are not treated as periodic.
func (cb1 *CellBounds) Intersect(cb2 *CellBounds) (CellBounds, bool) {
	out := CellBounds{}
	for i := 0; i < 3; i++ {
		lo, hi := cb1.Origin[i], cb1.Origin[i]+cb1.Width[i]
		if cb2.Origin[i] > lo {
			lo = cb2.Origin[i]
		}
		if end := cb2.Origin[i] + cb2.Width[i]; end < hi {
			hi = end
		}
		if hi <= lo {
			return CellBounds{}, false
		}
		out.Origin[i], out.Width[i] = lo, hi-lo
	}
	return out, true
}

func (cb CellBounds) String() string {
	return fmt.Sprintf("[%d %d %d]+[%d %d %d]",
		cb.Origin[0], cb.Origin[1], cb.Origin[2],
		cb.Width[0], cb.Width[1], cb.Width[2])
}
