/*package snapshot opens simulation outputs and resamples their fields onto
uniform grids.

A Snapshot is either a MeshSnapshot (an AMReX plotfile) or a
ParticleSnapshot (a Gadget-2 or Gadget-4 file). Both answer the same
question: what does field f look like on an R^3 lattice covering the
snapshot's domain? Grids are always returned with the first axis varying
fastest.
*/
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phil-mansfield/gridpipe/density"
	"github.com/phil-mansfield/gridpipe/geom"
	"github.com/phil-mansfield/gridpipe/io"
)

// Kind is the discretization of a snapshot's source data.
type Kind int

const (
	Mesh Kind = iota
	Particle
)

func (k Kind) String() string {
	switch k {
	case Mesh:
		return "mesh"
	case Particle:
		return "particle"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Hint tells Open how to read a path.
type Hint int

const (
	Auto Hint = iota
	Plotfile
	Gadget2
	Gadget4
)

// ParseHint converts a config value (case-insensitive) into a Hint.
func ParseHint(s string) (Hint, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "mesh", "plotfile", "amrex":
		return Plotfile, nil
	case "gadget2", "gadget-2", "lgadget-2":
		return Gadget2, nil
	case "gadget4", "gadget-4", "hdf5":
		return Gadget4, nil
	}
	return Auto, fmt.Errorf("unknown snapshot format '%s'", s)
}

// DefaultDenylist lists the diagnostic fields which are never exported.
var DefaultDenylist = []string{"StateErr"}

// Snapshot is one simulation output at a single timestep. Implementations
// are read-only: Query never modifies the snapshot or the files behind it.
type Snapshot interface {
	Kind() Kind
	Domain() geom.Domain
	// FieldNames returns the sorted names of every exportable field.
	FieldNames() []string
	// Query returns field resampled onto a res^3 lattice covering Domain().
	Query(field string, res int) ([]float64, error)
	Close() error
}

// Options controls how snapshots are opened.
type Options struct {
	Denylist []string

	// Particle snapshots only.
	BoxSize      float64
	PartType     int
	ParticleMass float64
	Interpolator density.Interpolator
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Denylist:     DefaultDenylist,
		Interpolator: density.CloudInCell(),
	}
}

// UnreadableError is returned when a snapshot is missing or malformed.
type UnreadableError struct {
	Path string
	Err  error
}

func (e *UnreadableError) Error() string {
	return fmt.Sprintf("unreadable snapshot '%s': %s", e.Path, e.Err)
}

func (e *UnreadableError) Unwrap() error { return e.Err }

// Open opens the snapshot at path. With the Auto hint, a directory holding a
// plotfile Header is read as a mesh snapshot, a .hdf5 or .h5 file as a
// Gadget-4 snapshot and any other file as a Gadget-2 snapshot.
func Open(path string, hint Hint, opt Options) (Snapshot, error) {
	if opt.Interpolator == nil {
		opt.Interpolator = density.CloudInCell()
	}

	if hint == Auto {
		var err error
		if hint, err = inferHint(path); err != nil {
			return nil, &UnreadableError{path, err}
		}
	}

	var (
		snap Snapshot
		err  error
	)
	switch hint {
	case Plotfile:
		snap, err = OpenMesh(path, opt.Denylist)
	case Gadget2:
		var p *io.Particles
		if p, err = io.ReadGadget2(path); err == nil {
			if opt.BoxSize > 0 {
				p.BoxSize = opt.BoxSize
			}
			snap, err = NewParticleSnapshot(p, opt)
		}
	case Gadget4:
		var p *io.Particles
		p, err = io.ReadGadget4(path, io.HDF5Options{
			PartType: opt.PartType, BoxSize: opt.BoxSize, Mass: opt.ParticleMass,
		})
		if err == nil {
			snap, err = NewParticleSnapshot(p, opt)
		}
	default:
		err = fmt.Errorf("unknown snapshot hint %d", hint)
	}

	if err != nil {
		return nil, &UnreadableError{path, err}
	}
	return snap, nil
}

func inferHint(path string) (Hint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Auto, err
	}
	if info.IsDir() {
		if io.IsPlotfile(path) {
			return Plotfile, nil
		}
		return Auto, fmt.Errorf("directory has no plotfile Header")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hdf5", ".h5":
		return Gadget4, nil
	}
	return Gadget2, nil
}

// Resample returns field of snap on a res^3 lattice, flattened with the
// first axis varying fastest. res must be positive. It is a precondition,
// not an error path, that res subdivides the domain: cells are always
// domain width / res wide.
func Resample(snap Snapshot, field string, res int) ([]float64, error) {
	if res <= 0 {
		return nil, fmt.Errorf("resolution must be positive, not %d", res)
	}
	if !hasField(snap.FieldNames(), field) {
		return nil, fmt.Errorf("snapshot has no field '%s'", field)
	}

	xs, err := snap.Query(field, res)
	if err != nil {
		return nil, err
	}
	if len(xs) != res*res*res {
		return nil, fmt.Errorf(
			"query for '%s' returned %d values instead of %d^3",
			field, len(xs), res,
		)
	}
	return xs, nil
}

func hasField(names []string, field string) bool {
	for _, name := range names {
		if name == field {
			return true
		}
	}
	return false
}

// filterFields removes every denylisted name and sorts the rest.
func filterFields(names, denylist []string) []string {
	deny := map[string]bool{}
	for _, name := range denylist {
		deny[name] = true
	}

	out := []string{}
	for _, name := range names {
		if !deny[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
