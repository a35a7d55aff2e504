package snapshot

import (
	"fmt"

	"github.com/phil-mansfield/gridpipe/density"
	"github.com/phil-mansfield/gridpipe/geom"
	"github.com/phil-mansfield/gridpipe/io"
)

// DensityField is the name of the deposited mass density of a particle
// snapshot.
const DensityField = "density"

// ParticleSnapshot is a particle snapshot held in memory.
type ParticleSnapshot struct {
	p        *io.Particles
	dom      geom.Domain
	periodic bool
	intr     density.Interpolator
	fields   []string
}

// NewParticleSnapshot wraps a set of particles. If p.BoxSize is positive the
// domain is the periodic box [0, BoxSize)^3; otherwise it is the bounding box
// of the particles and deposition is not periodic.
func NewParticleSnapshot(p *io.Particles, opt Options) (*ParticleSnapshot, error) {
	if p.Len() == 0 {
		return nil, fmt.Errorf("snapshot contains no particles")
	}

	snap := &ParticleSnapshot{p: p, intr: opt.Interpolator}
	if snap.intr == nil {
		snap.intr = density.CloudInCell()
	}

	if p.BoxSize > 0 {
		snap.dom, snap.periodic = geom.CubeDomain(p.BoxSize), true
	} else {
		snap.dom = geom.Bounding(p.Xs)
		if !snap.dom.Valid() {
			return nil, fmt.Errorf(
				"particles span a degenerate volume %v and no box size was given",
				snap.dom,
			)
		}
	}

	names := []string{DensityField}
	for name := range p.Scalars {
		if name != DensityField {
			names = append(names, name)
		}
	}
	snap.fields = filterFields(names, opt.Denylist)
	return snap, nil
}

func (snap *ParticleSnapshot) Kind() Kind { return Particle }

func (snap *ParticleSnapshot) Domain() geom.Domain { return snap.dom }

func (snap *ParticleSnapshot) FieldNames() []string {
	return append([]string{}, snap.fields...)
}

func (snap *ParticleSnapshot) Close() error {
	snap.p = nil
	return nil
}

// Query deposits the particles onto a res^3 lattice. The density field is
// mass per unit volume and every other field is the mass-weighted mean of
// the particle values in each cell.
func (snap *ParticleSnapshot) Query(field string, res int) ([]float64, error) {
	if snap.p == nil {
		return nil, fmt.Errorf("snapshot has been closed")
	}

	g, err := density.NewGrid(
		res, snap.dom, snap.periodic, make([]float64, res*res*res),
	)
	if err != nil {
		return nil, err
	}

	if field == DensityField {
		err = density.Density(snap.intr, g, snap.p.Xs, snap.p.Ms)
	} else if vals, ok := snap.p.Scalars[field]; ok {
		err = density.MassWeighted(snap.intr, g, snap.p.Xs, snap.p.Ms, vals)
	} else {
		return nil, fmt.Errorf("particle snapshot has no field '%s'", field)
	}
	if err != nil {
		return nil, err
	}
	return g.Vals, nil
}
