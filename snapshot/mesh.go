package snapshot

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/gridpipe/geom"
	"github.com/phil-mansfield/gridpipe/io"
)

// MeshSnapshot is an AMReX plotfile. Only the plotfile's metadata is held in
// memory; box data is read on every Query.
type MeshSnapshot struct {
	pf     *io.Plotfile
	fields []string
}

// OpenMesh reads the metadata of the plotfile in dir.
func OpenMesh(dir string, denylist []string) (*MeshSnapshot, error) {
	pf, err := io.ReadPlotfile(dir)
	if err != nil {
		return nil, err
	}
	return &MeshSnapshot{pf, filterFields(pf.Vars, denylist)}, nil
}

func (snap *MeshSnapshot) Kind() Kind { return Mesh }

func (snap *MeshSnapshot) Domain() geom.Domain {
	return geom.Domain{Lo: snap.pf.ProbLo, Hi: snap.pf.ProbHi}
}

func (snap *MeshSnapshot) FieldNames() []string {
	return append([]string{}, snap.fields...)
}

func (snap *MeshSnapshot) Close() error { return nil }

// Query samples every lattice cell centre from the finest level which covers
// it. Levels are applied from coarsest to finest, so each refined patch
// overwrites the coarse values below it. When res matches the level-0 domain
// this reproduces the level-0 data exactly.
func (snap *MeshSnapshot) Query(field string, res int) ([]float64, error) {
	comp := snap.pf.Var(field)
	if comp < 0 {
		return nil, fmt.Errorf("plotfile '%s' has no field '%s'", snap.pf.Dir, field)
	}

	dom := snap.Domain()
	out := make([]float64, res*res*res)
	g := geom.NewCubeGrid(res)
	tw := dom.CellWidth(res)

	for lev := range snap.pf.Levels {
		dx := snap.pf.Dx[lev]
		for i := range snap.pf.Levels[lev].Boxes {
			vals, box, err := snap.pf.ReadFab(lev, i, comp)
			if err != nil {
				return nil, err
			}
			bg := geom.NewGrid(box.Origin, box.Width)

			cover := geom.CellBounds{}
			for k := 0; k < 3; k++ {
				blo := float64(box.Origin[k]) * dx[k]
				bhi := float64(box.Origin[k]+box.Width[k]) * dx[k]
				lo := int(math.Ceil(blo/tw[k] - 0.5))
				hi := int(math.Ceil(bhi/tw[k] - 0.5))
				cover.Origin[k], cover.Width[k] = lo, hi-lo
			}
			cb, ok := g.CellBounds.Intersect(&cover)
			if !ok {
				continue
			}

			for z := cb.Origin[2]; z < cb.Origin[2]+cb.Width[2]; z++ {
				sz := srcIdx(z, tw[2], dx[2], box.Origin[2], box.Width[2])
				for y := cb.Origin[1]; y < cb.Origin[1]+cb.Width[1]; y++ {
					sy := srcIdx(y, tw[1], dx[1], box.Origin[1], box.Width[1])
					for x := cb.Origin[0]; x < cb.Origin[0]+cb.Width[0]; x++ {
						sx := srcIdx(x, tw[0], dx[0], box.Origin[0], box.Width[0])
						out[g.Idx(x, y, z)] = vals[bg.Idx(sx, sy, sz)]
					}
				}
			}
		}
	}

	return out, nil
}

// srcIdx returns the index of the source cell containing the centre of
// lattice cell i, clamped to the box.
func srcIdx(i int, tw, dx float64, origin, width int) int {
	c := (float64(i) + 0.5) * tw
	return clamp(int(math.Floor(c/dx)), origin, origin+width-1)
}

func clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	} else if i > hi {
		return hi
	}
	return i
}
