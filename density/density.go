/*package density deposits sequences of particles onto uniform grids.
*/
package density

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/gridpipe/geom"
)

// Interpolator deposits weighted points onto a Grid.
type Interpolator interface {
	Interpolate(g *Grid, ws []float64, xs []geom.Vec)
}

type ngp struct{}
type cic struct{}

// NearestGridPoint returns an Interpolator which places the entire weight of
// each point in the cell containing it.
func NearestGridPoint() Interpolator { return &ngp{} }

// CloudInCell returns an Interpolator which spreads the weight of each point
// over the eight nearest cell centres with trilinear weights.
func CloudInCell() Interpolator { return &cic{} }

// Grid is a deposition target: a cells^3 lattice covering Domain. Vals is
// stored with the first axis varying fastest.
type Grid struct {
	Vals     []float64
	Domain   geom.Domain
	G        *geom.Grid
	Cells    int
	Periodic bool

	cw [3]float64
}

// NewGrid returns a grid backed by vals, which must have length cells^3. If
// periodic is false, points outside the domain are clamped to the edge cells
// so that no weight is lost.
func NewGrid(
	cells int, dom geom.Domain, periodic bool, vals []float64,
) (*Grid, error) {
	if cells <= 0 {
		return nil, fmt.Errorf("Grid must have a positive cell count, not %d.", cells)
	} else if len(vals) != cells*cells*cells {
		return nil, fmt.Errorf(
			"Value buffer has length %d, but a %d^3 grid needs %d.",
			len(vals), cells, cells*cells*cells,
		)
	} else if !dom.Valid() {
		return nil, fmt.Errorf("Domain %v has a non-positive width.", dom)
	}

	g := &Grid{
		Vals: vals, Domain: dom, Cells: cells, Periodic: periodic,
		G: geom.NewCubeGrid(cells),
	}
	g.cw = dom.CellWidth(cells)
	return g, nil
}

// Clear zeroes the grid.
func (g *Grid) Clear() {
	for i := range g.Vals {
		g.Vals[i] = 0
	}
}

// Interpolate interpolates a sequence of points onto a grid via a nearest
// grid point scheme.
func (intr *ngp) Interpolate(g *Grid, ws []float64, xs []geom.Vec) {
	for n, pt := range xs {
		var idx [3]int
		for k := 0; k < 3; k++ {
			u := (float64(pt[k]) - g.Domain.Lo[k]) / g.cw[k]
			idx[k] = g.fix(int(math.Floor(u)))
		}
		g.Vals[g.G.Idx(idx[0], idx[1], idx[2])] += ws[n]
	}
}

// Interpolate interpolates a sequence of points onto a grid via a cloud in
// cell scheme.
func (intr *cic) Interpolate(g *Grid, ws []float64, xs []geom.Vec) {
	for n, pt := range xs {
		var (
			lo, hi [3]int
			d, t   [3]float64
		)
		for k := 0; k < 3; k++ {
			u := (float64(pt[k])-g.Domain.Lo[k])/g.cw[k] - 0.5
			c := math.Floor(u)
			d[k] = u - c
			t[k] = 1 - d[k]
			lo[k], hi[k] = g.fix(int(c)), g.fix(int(c)+1)
		}

		w := ws[n]
		g.incr(lo[0], lo[1], lo[2], t[0]*t[1]*t[2]*w)
		g.incr(hi[0], lo[1], lo[2], d[0]*t[1]*t[2]*w)
		g.incr(lo[0], hi[1], lo[2], t[0]*d[1]*t[2]*w)
		g.incr(hi[0], hi[1], lo[2], d[0]*d[1]*t[2]*w)
		g.incr(lo[0], lo[1], hi[2], t[0]*t[1]*d[2]*w)
		g.incr(hi[0], lo[1], hi[2], d[0]*t[1]*d[2]*w)
		g.incr(lo[0], hi[1], hi[2], t[0]*d[1]*d[2]*w)
		g.incr(hi[0], hi[1], hi[2], d[0]*d[1]*d[2]*w)
	}
}

// fix maps a cell index which may have left the lattice back onto it.
func (g *Grid) fix(i int) int {
	if g.Periodic {
		return geom.Wrap(i, g.Cells)
	}
	if i < 0 {
		return 0
	} else if i >= g.Cells {
		return g.Cells - 1
	}
	return i
}

func (g *Grid) incr(i, j, k int, w float64) {
	g.Vals[g.G.Idx(i, j, k)] += w
}

// Density deposits particles with the given masses and returns the mass
// density of every cell.
func Density(
	intr Interpolator, g *Grid, xs []geom.Vec, ms []float64,
) error {
	if len(ms) != len(xs) {
		return fmt.Errorf(
			"Got %d masses for %d particles.", len(ms), len(xs),
		)
	}
	g.Clear()
	intr.Interpolate(g, ms, xs)

	vol := g.Domain.CellVolume(g.Cells)
	for i := range g.Vals {
		g.Vals[i] /= vol
	}
	return nil
}

// MassWeighted deposits the per-particle quantity vals and writes the mass
// weighted mean of vals in every cell to g. Cells that receive no mass are
// set to zero.
func MassWeighted(
	intr Interpolator, g *Grid, xs []geom.Vec, ms, vals []float64,
) error {
	if len(ms) != len(xs) || len(vals) != len(xs) {
		return fmt.Errorf(
			"Got %d masses and %d values for %d particles.",
			len(ms), len(vals), len(xs),
		)
	}

	mvs := make([]float64, len(xs))
	for i := range mvs {
		mvs[i] = ms[i] * vals[i]
	}

	weights := make([]float64, len(g.Vals))
	wg := *g
	wg.Vals = weights
	intr.Interpolate(&wg, ms, xs)

	g.Clear()
	intr.Interpolate(g, mvs, xs)

	for i := range g.Vals {
		if weights[i] > 0 {
			g.Vals[i] /= weights[i]
		} else {
			g.Vals[i] = 0
		}
	}
	return nil
}
