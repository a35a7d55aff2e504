package io

import (
	"fmt"
	"path"
	"sort"

	"github.com/scigolib/hdf5"

	"github.com/phil-mansfield/gridpipe/geom"
)

// HDF5Options controls how a Gadget-4 HDF5 snapshot is read.
type HDF5Options struct {
	// PartType selects the PartTypeN group. 0 is gas.
	PartType int
	// BoxSize overrides the BoxSize attribute of the Header group. If
	// neither is positive, the bounding box of the particles is used and the
	// box is not periodic.
	BoxSize float64
	// Mass overrides the Header MassTable entry of PartType when the group
	// has no Masses dataset. If neither is positive, every particle has unit
	// mass.
	Mass float64
}

// gadget4Header holds the Header attributes which gridpipe uses.
type gadget4Header struct {
	BoxSize, Time, Redshift float64
	MassTable               []float64
}

// ReadGadget4 reads one particle type from a Gadget-4 HDF5 snapshot. Every
// one-dimensional dataset in the group with one value per particle becomes a
// scalar field, and velocities are exposed as x_velocity, y_velocity and
// z_velocity.
func ReadGadget4(fname string, opt HDF5Options) (*Particles, error) {
	if err := checkRegularFile(fname); err != nil {
		return nil, err
	}

	file, err := hdf5.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("could not open HDF5 file '%s': %w", fname, err)
	}
	defer file.Close()

	group := fmt.Sprintf("PartType%d", opt.PartType)
	datasets := map[string]*hdf5.Dataset{}
	hd := &gadget4Header{}
	var hdErr error
	file.Walk(func(p string, obj hdf5.Object) {
		switch v := obj.(type) {
		case *hdf5.Group:
			if path.Base(p) == "Header" {
				hdErr = readGadget4Header(v, hd)
			}
		case *hdf5.Dataset:
			if path.Base(path.Dir(p)) == group {
				datasets[path.Base(p)] = v
			}
		}
	})
	if hdErr != nil {
		return nil, fmt.Errorf("could not read Header of '%s': %w", fname, hdErr)
	}

	boxSize := hd.BoxSize
	if opt.BoxSize > 0 {
		boxSize = opt.BoxSize
	}

	coords, ok := datasets["Coordinates"]
	if !ok {
		return nil, fmt.Errorf(
			"'%s' has no %s/Coordinates dataset.", fname, group,
		)
	}
	xs, err := coords.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read %s/Coordinates: %w", group, err)
	}
	if len(xs)%3 != 0 {
		return nil, fmt.Errorf(
			"%s/Coordinates in '%s' has %d values, which is not a multiple "+
				"of 3.", group, fname, len(xs),
		)
	}
	if err := finite(group+"/Coordinates", xs); err != nil {
		return nil, fmt.Errorf("'%s': %w", fname, err)
	}
	n := len(xs) / 3

	p := &Particles{
		Xs: make([]geom.Vec, n), Vs: make([]geom.Vec, n),
		Ms: make([]float64, n), Scalars: map[string][]float64{},
		BoxSize: boxSize, Time: hd.Time, Redshift: hd.Redshift,
	}
	for i := range p.Xs {
		for k := 0; k < 3; k++ {
			p.Xs[i][k] = float32(wrap(xs[3*i+k], boxSize))
		}
	}

	if vel, ok := datasets["Velocities"]; ok {
		vs, err := vel.Read()
		if err != nil {
			return nil, fmt.Errorf("could not read %s/Velocities: %w", group, err)
		} else if len(vs) != 3*n {
			return nil, fmt.Errorf(
				"%s/Velocities has %d values for %d particles.", group, len(vs), n,
			)
		}
		for i := range p.Vs {
			for k := 0; k < 3; k++ {
				p.Vs[i][k] = float32(vs[3*i+k])
			}
		}
		addVelocityScalars(p)
	}

	if ms, ok := datasets["Masses"]; ok {
		vals, err := ms.Read()
		if err != nil {
			return nil, fmt.Errorf("could not read %s/Masses: %w", group, err)
		} else if len(vals) != n {
			return nil, fmt.Errorf(
				"%s/Masses has %d values for %d particles.", group, len(vals), n,
			)
		}
		copy(p.Ms, vals)
	} else {
		mass := opt.Mass
		if mass <= 0 && opt.PartType >= 0 && opt.PartType < len(hd.MassTable) {
			mass = hd.MassTable[opt.PartType]
		}
		if mass <= 0 {
			mass = 1
		}
		for i := range p.Ms {
			p.Ms[i] = mass
		}
	}

	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch name {
		case "Coordinates", "Velocities", "Masses", "ParticleIDs":
			continue
		}
		vals, err := datasets[name].Read()
		if err != nil {
			return nil, fmt.Errorf("could not read %s/%s: %w", group, name, err)
		}
		// Vector-valued datasets are not scalar fields.
		if len(vals) != n {
			continue
		}
		p.Scalars[name] = vals
	}

	return p, nil
}

// WriteGadget4 writes p as a Gadget-4 HDF5 snapshot holding one particle
// group, PartType opt.PartType. If opt.Mass is positive it is written to the
// header MassTable and the Masses dataset is left out. Velocity scalars are
// not written separately. It exists so that tests and tools can produce
// small snapshots.
func WriteGadget4(fname string, p *Particles, opt HDF5Options) error {
	fw, err := hdf5.CreateForWrite(fname, hdf5.CreateTruncate)
	if err != nil {
		return err
	}

	if err := writeGadget4(fw, p, opt); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}

func writeGadget4(fw *hdf5.FileWriter, p *Particles, opt HDF5Options) error {
	hg, err := fw.CreateGroup("/Header")
	if err != nil {
		return err
	}
	massTable := make([]float64, 6)
	if opt.PartType < 0 || opt.PartType >= len(massTable) {
		return fmt.Errorf("PartType %d is not in [0, 6).", opt.PartType)
	}
	if opt.Mass > 0 {
		massTable[opt.PartType] = opt.Mass
	}
	attrs := []struct {
		name  string
		value interface{}
	}{
		{"BoxSize", p.BoxSize}, {"Time", p.Time}, {"Redshift", p.Redshift},
		{"MassTable", massTable},
	}
	for _, attr := range attrs {
		if err := hg.WriteAttribute(attr.name, attr.value); err != nil {
			return err
		}
	}

	group := fmt.Sprintf("/PartType%d", opt.PartType)
	if _, err := fw.CreateGroup(group); err != nil {
		return err
	}

	n := p.Len()
	xs, vs := make([]float64, 3*n), make([]float64, 3*n)
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			xs[3*i+k], vs[3*i+k] = float64(p.Xs[i][k]), float64(p.Vs[i][k])
		}
	}

	names := []string{"Coordinates", "Velocities"}
	data := map[string][]float64{"Coordinates": xs, "Velocities": vs}
	if opt.Mass <= 0 {
		names = append(names, "Masses")
		data["Masses"] = p.Ms
	}
	scalars := []string{}
	for name := range p.Scalars {
		switch name {
		case "x_velocity", "y_velocity", "z_velocity":
			continue
		}
		scalars = append(scalars, name)
		data[name] = p.Scalars[name]
	}
	sort.Strings(scalars)
	names = append(names, scalars...)

	for _, name := range names {
		dims := []uint64{uint64(n)}
		if name == "Coordinates" || name == "Velocities" {
			dims = []uint64{uint64(n), 3}
		}
		ds, err := fw.CreateDataset(group+"/"+name, hdf5.Float64, dims)
		if err != nil {
			return err
		}
		if err := ds.Write(data[name]); err != nil {
			return fmt.Errorf("could not write %s/%s: %w", group, name, err)
		}
	}
	return nil
}

// readGadget4Header copies the numeric Header attributes gridpipe knows
// about into hd. Attributes of other types are ignored.
func readGadget4Header(g *hdf5.Group, hd *gadget4Header) error {
	attrs, err := g.Attributes()
	if err != nil {
		return err
	}

	for _, attr := range attrs {
		switch attr.Name {
		case "BoxSize", "Time", "Redshift", "MassTable":
		default:
			continue
		}

		val, err := attr.ReadValue()
		if err != nil {
			return fmt.Errorf("attribute %s: %w", attr.Name, err)
		}
		xs := attrFloats(val)
		if len(xs) == 0 {
			return fmt.Errorf("attribute %s is not numeric", attr.Name)
		}
		if err := finite(attr.Name, xs); err != nil {
			return err
		}

		switch attr.Name {
		case "BoxSize":
			hd.BoxSize = xs[0]
		case "Time":
			hd.Time = xs[0]
		case "Redshift":
			hd.Redshift = xs[0]
		case "MassTable":
			hd.MassTable = xs
		}
	}
	return nil
}

// attrFloats converts a decoded attribute value to float64s.
func attrFloats(val interface{}) []float64 {
	switch v := val.(type) {
	case float64:
		return []float64{v}
	case float32:
		return []float64{float64(v)}
	case int32:
		return []float64{float64(v)}
	case int64:
		return []float64{float64(v)}
	case []float64:
		return v
	case []float32:
		out := make([]float64, len(v))
		for i := range v {
			out[i] = float64(v[i])
		}
		return out
	case []int32:
		out := make([]float64, len(v))
		for i := range v {
			out[i] = float64(v[i])
		}
		return out
	case []int64:
		out := make([]float64, len(v))
		for i := range v {
			out[i] = float64(v[i])
		}
		return out
	}
	return nil
}
