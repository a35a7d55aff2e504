package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gridpipe/geom"
	"github.com/phil-mansfield/gridpipe/io"
)

// writeMesh writes a single-level, single-box plotfile over the unit cube
// with n^3 cells. Component c of cell (x, y, z) has the value
// 1000*c + 100*x + 10*y + z.
func writeMesh(t *testing.T, dir string, vars []string, n int) {
	t.Helper()
	box := geom.CellBounds{Width: [3]int{n, n, n}}
	pf := &io.Plotfile{
		Vars: vars, ProbHi: [3]float64{1, 1, 1},
		Domains: []geom.CellBounds{box},
		Levels:  []io.PlotLevel{{Boxes: []geom.CellBounds{box}}},
	}

	g := geom.NewCubeGrid(n)
	comps := make([][]float64, len(vars))
	for c := range comps {
		comps[c] = make([]float64, g.Volume)
		for i := range comps[c] {
			x, y, z := g.Coords(i)
			comps[c][i] = float64(1000*c + 100*x + 10*y + z)
		}
	}
	require.NoError(t, io.WritePlotfile(dir, pf, [][][][]float64{{comps}}))
}

func TestEnumerateSortsNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"plt9", "plt10", "plt2", "pltfoo", "Header", "plt00150.temp"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0755))
	}

	entries, err := Enumerate(dir, PlotfilePattern, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 9, 10}, Timesteps(entries))
	assert.Equal(t, "10", entries[2].Label)
	assert.Equal(t, filepath.Join(dir, "plt10"), entries[2].Path)
}

func TestEnumerateMinTimestep(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"plt00100", "plt00150", "plt00200"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0755))
	}

	entries, err := Enumerate(dir, PlotfilePattern, 150)
	require.NoError(t, err)
	assert.Equal(t, []int{150, 200}, Timesteps(entries))
	assert.Equal(t, "00150", entries[0].Label)

	_, err = Enumerate(filepath.Join(dir, "missing"), PlotfilePattern, 0)
	assert.Error(t, err)
}

func TestPatternTimestep(t *testing.T) {
	table := []struct {
		name  string
		step  int
		label string
		ok    bool
	}{
		{"snap_012.hdf5", 12, "012", true},
		{"snap_012.h5", 0, "", false},
		{"snap_.hdf5", 0, "", false},
		{"plt012.hdf5", 0, "", false},
	}

	for _, test := range table {
		step, label, ok := Gadget4Pattern.Timestep(test.name)
		assert.Equal(t, test.ok, ok, test.name)
		assert.Equal(t, test.step, step, test.name)
		assert.Equal(t, test.label, label, test.name)
	}

	// Prefix and suffix share characters with the name.
	overlap := Pattern{"plt", "t"}
	for _, name := range []string{"plt", "pl", "t", ""} {
		_, _, ok := overlap.Timestep(name)
		assert.False(t, ok, name)
	}
	step, label, ok := overlap.Timestep("plt07t")
	assert.True(t, ok)
	assert.Equal(t, 7, step)
	assert.Equal(t, "07", label)
}

func TestMeshQueryExact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plt1")
	writeMesh(t, dir, []string{"density", "pressure", "StateErr"}, 4)

	snap, err := Open(dir, Auto, DefaultOptions())
	require.NoError(t, err)
	defer snap.Close()

	assert.Equal(t, Mesh, snap.Kind())
	assert.Equal(t, []string{"density", "pressure"}, snap.FieldNames())
	assert.Equal(t, geom.CubeDomain(1), snap.Domain())

	xs, err := Resample(snap, "pressure", 4)
	require.NoError(t, err)
	require.Len(t, xs, 64)
	// First axis fastest.
	assert.Equal(t, 1000.0, xs[0])
	assert.Equal(t, 1100.0, xs[1])
	assert.Equal(t, 1010.0, xs[4])
	assert.Equal(t, 1001.0, xs[16])
	assert.Equal(t, 1333.0, xs[63])

	_, err = Resample(snap, "StateErr", 4)
	assert.Error(t, err)
	_, err = Resample(snap, "density", 0)
	assert.Error(t, err)
}

func TestMeshQueryResolutionChange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plt1")
	writeMesh(t, dir, []string{"density"}, 4)
	snap, err := OpenMesh(dir, DefaultDenylist)
	require.NoError(t, err)

	up, err := snap.Query("density", 8)
	require.NoError(t, err)
	g := geom.NewCubeGrid(8)
	assert.Equal(t, 0.0, up[g.Idx(0, 0, 0)])
	assert.Equal(t, 0.0, up[g.Idx(1, 1, 1)])
	assert.Equal(t, 100.0, up[g.Idx(2, 0, 0)])
	assert.Equal(t, 333.0, up[g.Idx(7, 7, 7)])

	down, err := snap.Query("density", 2)
	require.NoError(t, err)
	g = geom.NewCubeGrid(2)
	// Cell centres at 0.25 and 0.75 land in source cells 1 and 3.
	assert.Equal(t, 111.0, down[g.Idx(0, 0, 0)])
	assert.Equal(t, 333.0, down[g.Idx(1, 1, 1)])
}

func TestMeshQueryRefinedLevel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plt1")
	coarse := geom.CellBounds{Width: [3]int{2, 2, 2}}
	fine := geom.CellBounds{Width: [3]int{2, 2, 2}}
	pf := &io.Plotfile{
		Vars: []string{"density"}, ProbHi: [3]float64{1, 1, 1},
		RefRatio: []int{2},
		Domains: []geom.CellBounds{
			coarse, {Width: [3]int{4, 4, 4}},
		},
		Levels: []io.PlotLevel{
			{Boxes: []geom.CellBounds{coarse}},
			{Boxes: []geom.CellBounds{fine}},
		},
	}
	ones := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	fives := []float64{5, 5, 5, 5, 5, 5, 5, 5}
	require.NoError(t, io.WritePlotfile(dir, pf, [][][][]float64{
		{{ones}}, {{fives}},
	}))

	snap, err := OpenMesh(dir, nil)
	require.NoError(t, err)
	xs, err := snap.Query("density", 4)
	require.NoError(t, err)

	g := geom.NewCubeGrid(4)
	assert.Equal(t, 5.0, xs[g.Idx(0, 0, 0)])
	assert.Equal(t, 5.0, xs[g.Idx(1, 1, 1)])
	assert.Equal(t, 1.0, xs[g.Idx(2, 0, 0)])
	assert.Equal(t, 1.0, xs[g.Idx(3, 3, 3)])
}

func TestParticleSnapshot(t *testing.T) {
	p := &io.Particles{
		Xs:      []geom.Vec{{1, 1, 1}, {3, 3, 3}},
		Vs:      []geom.Vec{{0, 0, 0}, {0, 0, 0}},
		Ms:      []float64{2, 6},
		BoxSize: 4,
		Scalars: map[string][]float64{
			"InternalEnergy": {10, 20},
			"StateErr":       {1, 1},
		},
	}
	path := filepath.Join(t.TempDir(), "snapshot_005")
	require.NoError(t, io.WriteGadget2(path, p))

	snap, err := Open(path, Auto, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Particle, snap.Kind())
	assert.Equal(t, []string{"density", "x_velocity", "y_velocity", "z_velocity"},
		snap.FieldNames())

	rho, err := Resample(snap, "density", 2)
	require.NoError(t, err)
	g := geom.NewCubeGrid(2)
	// Cells are 2 wide, so each particle sits on a cell centre.
	assert.InDelta(t, 2.0/8, rho[g.Idx(0, 0, 0)], 1e-12)
	assert.InDelta(t, 6.0/8, rho[g.Idx(1, 1, 1)], 1e-12)

	mem, err := NewParticleSnapshot(p, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"InternalEnergy", "density"}, mem.FieldNames())
	u, err := mem.Query("InternalEnergy", 2)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, u[g.Idx(0, 0, 0)], 1e-12)
	assert.InDelta(t, 20.0, u[g.Idx(1, 1, 1)], 1e-12)
	assert.Equal(t, 0.0, u[g.Idx(1, 0, 0)])

	require.NoError(t, mem.Close())
	_, err = mem.Query("density", 2)
	assert.Error(t, err)
}

func TestGadget4Snapshot(t *testing.T) {
	// Particles sit on cell centres of a 2^3 lattice over a box of width 2,
	// so cloud-in-cell deposition puts all of each particle in one cell.
	p := &io.Particles{
		Xs: []geom.Vec{
			{0.5, 0.5, 0.5}, {1.5, 0.5, 0.5}, {2.5, 1.5, 1.5},
			{-0.5, 1.5, 0.5}, {0.5, 0.5, 0.5},
		},
		Vs: []geom.Vec{{1, 0, 0}, {2, 0, 0}, {-3, 0, 0}, {4, 0, 0}, {5, 0, 0}},
		Ms: []float64{1, 2, 3, 4, 3},
		Scalars: map[string][]float64{
			"Density": {10, 20, 30, 40, 50},
		},
		BoxSize: 2,
	}
	path := filepath.Join(t.TempDir(), "snap_002.hdf5")
	require.NoError(t, io.WriteGadget4(path, p, io.HDF5Options{}))

	snap, err := Open(path, Auto, DefaultOptions())
	require.NoError(t, err)
	defer snap.Close()

	assert.Equal(t, Particle, snap.Kind())
	assert.Equal(t, geom.CubeDomain(2), snap.Domain())
	assert.ElementsMatch(t, []string{
		"density", "Density", "x_velocity", "y_velocity", "z_velocity",
	}, snap.FieldNames())

	rho, err := Resample(snap, "Density", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 20, 0, 40, 0, 0, 30, 0}, rho)

	vx, err := Resample(snap, "x_velocity", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 2, 0, 4, 0, 0, -3, 0}, vx)

	mass, err := Resample(snap, DensityField, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 2, 0, 4, 0, 0, 3, 0}, mass)
}

func TestParticleSnapshotBoundingDomain(t *testing.T) {
	p := &io.Particles{
		Xs: []geom.Vec{{0, 0, 0}, {2, 4, 8}},
		Ms: []float64{1, 1},
	}
	snap, err := NewParticleSnapshot(p, Options{})
	require.NoError(t, err)
	assert.Equal(t, geom.Domain{Hi: [3]float64{2, 4, 8}}, snap.Domain())

	_, err = NewParticleSnapshot(&io.Particles{Xs: []geom.Vec{{1, 1, 1}}, Ms: []float64{1}}, Options{})
	assert.Error(t, err)
	_, err = NewParticleSnapshot(&io.Particles{}, Options{})
	assert.Error(t, err)
}

func TestOpenUnreadable(t *testing.T) {
	dir := t.TempDir()
	table := []struct {
		path string
		hint Hint
	}{
		{filepath.Join(dir, "missing"), Auto},
		{dir, Auto},
		{dir, Plotfile},
		{filepath.Join(dir, "missing.hdf5"), Gadget4},
	}

	for _, test := range table {
		_, err := Open(test.path, test.hint, DefaultOptions())
		var uerr *UnreadableError
		assert.True(t, errors.As(err, &uerr), test.path)
	}
}

func TestFieldsFromFirstSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeMesh(t, filepath.Join(dir, "plt1"), []string{"pressure", "StateErr", "density"}, 2)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "plt2"), 0755))

	entries, err := Enumerate(dir, PlotfilePattern, 0)
	require.NoError(t, err)
	layout, err := Fields(entries, Plotfile, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"density", "pressure"}, layout.Fields)
	assert.Equal(t, Mesh, layout.Kind)
	assert.Equal(t, geom.CubeDomain(1), layout.Domain)

	_, err = Fields(entries[1:], Plotfile, DefaultOptions())
	var uerr *UnreadableError
	assert.True(t, errors.As(err, &uerr))

	_, err = Fields(nil, Plotfile, DefaultOptions())
	assert.Error(t, err)
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "plt1"), filepath.Join(dir, "plt2")
	writeMesh(t, a, []string{"density"}, 2)
	writeMesh(t, b, []string{"density"}, 2)

	c := NewCache(Plotfile, DefaultOptions(), true)
	for i := 0; i < 3; i++ {
		snap, err := c.Get(a)
		require.NoError(t, err)
		require.NoError(t, c.Release(snap))
	}
	_, err := c.Get(b)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Opens)
	require.NoError(t, c.Close())

	c = NewCache(Plotfile, DefaultOptions(), false)
	for i := 0; i < 3; i++ {
		snap, err := c.Get(a)
		require.NoError(t, err)
		require.NoError(t, c.Release(snap))
	}
	assert.Equal(t, 3, c.Opens)

	c = NewCache(Plotfile, DefaultOptions(), true)
	_, err = c.Get(filepath.Join(dir, "missing"))
	assert.Error(t, err)
	_, err = c.Get(filepath.Join(dir, "missing"))
	assert.Error(t, err)
	assert.Equal(t, 1, c.Opens)
}

func TestParseHint(t *testing.T) {
	h, err := ParseHint("Mesh")
	require.NoError(t, err)
	assert.Equal(t, Plotfile, h)
	h, err = ParseHint("gadget4")
	require.NoError(t, err)
	assert.Equal(t, Gadget4, h)
	h, err = ParseHint("")
	require.NoError(t, err)
	assert.Equal(t, Auto, h)
	_, err = ParseHint("ramses")
	assert.Error(t, err)
}
