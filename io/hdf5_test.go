package io

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gridpipe/geom"
)

func gasParticles() *Particles {
	return &Particles{
		Xs: []geom.Vec{{0.5, 0.5, 0.5}, {2.5, 1.5, 1.5}, {-0.5, 1.5, 0.5}},
		Vs: []geom.Vec{{1, 2, 3}, {-1, 0, 4}, {7, 8, 9}},
		Ms: []float64{1, 2, 3},
		Scalars: map[string][]float64{
			"Density":        {10, 20, 30},
			"InternalEnergy": {5, 6, 7},
		},
		BoxSize: 2, Time: 0.5, Redshift: 1,
	}
}

func TestGadget4RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap_003.hdf5")
	require.NoError(t, WriteGadget4(path, gasParticles(), HDF5Options{}))

	p, err := ReadGadget4(path, HDF5Options{})
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())

	assert.Equal(t, 2.0, p.BoxSize)
	assert.Equal(t, 0.5, p.Time)
	assert.Equal(t, 1.0, p.Redshift)

	// Positions are wrapped into the box given by the header.
	assert.Equal(t, []geom.Vec{
		{0.5, 0.5, 0.5}, {0.5, 1.5, 1.5}, {1.5, 1.5, 0.5},
	}, p.Xs)
	assert.Equal(t, []float64{1, 2, 3}, p.Ms)

	assert.Equal(t, []float64{10, 20, 30}, p.Scalars["Density"])
	assert.Equal(t, []float64{5, 6, 7}, p.Scalars["InternalEnergy"])
	assert.Equal(t, []float64{1, -1, 7}, p.Scalars["x_velocity"])
	assert.Equal(t, []float64{3, 4, 9}, p.Scalars["z_velocity"])
	assert.NotContains(t, p.Scalars, "Masses")
	assert.NotContains(t, p.Scalars, "Coordinates")
}

func TestGadget4HeaderOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap_004.hdf5")
	require.NoError(t, WriteGadget4(path, gasParticles(), HDF5Options{Mass: 3}))

	p, err := ReadGadget4(path, HDF5Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 3}, p.Ms, "MassTable is used without Masses")

	p, err = ReadGadget4(path, HDF5Options{BoxSize: 4, Mass: 5})
	require.NoError(t, err)
	assert.Equal(t, 4.0, p.BoxSize)
	assert.Equal(t, []float64{5, 5, 5}, p.Ms)
	assert.Equal(t, geom.Vec{2.5, 1.5, 1.5}, p.Xs[1])
	assert.Equal(t, geom.Vec{3.5, 1.5, 0.5}, p.Xs[2])

	_, err = ReadGadget4(path, HDF5Options{PartType: 1})
	assert.Error(t, err)
}

func TestGadget4NonFinitePosition(t *testing.T) {
	for _, x := range []float32{float32(math.Inf(1)), float32(math.NaN())} {
		p := gasParticles()
		p.Xs[1][0] = x
		path := filepath.Join(t.TempDir(), "snap_005.hdf5")
		require.NoError(t, WriteGadget4(path, p, HDF5Options{}))

		_, err := ReadGadget4(path, HDF5Options{})
		assert.Error(t, err, "position %g", x)
	}
}

func TestWrap(t *testing.T) {
	table := []struct {
		x, width, out float64
	}{
		{0.5, 2, 0.5}, {2, 2, 0}, {2.5, 2, 0.5}, {-0.5, 2, 1.5},
		{-4.5, 2, 1.5}, {7, 0, 7}, {-3, -1, -3}, {1e20, 100, 0},
		{-1e-20, 2, 0},
	}

	for _, row := range table {
		done := make(chan float64, 1)
		go func(x, width float64) { done <- wrap(x, width) }(row.x, row.width)

		select {
		case out := <-done:
			assert.InDelta(t, row.out, out, 1e-12, "wrap(%g, %g)", row.x, row.width)
			if row.width > 0 {
				assert.True(t, out >= 0 && out < row.width)
			}
		case <-time.After(time.Second):
			t.Fatalf("wrap(%g, %g) did not return", row.x, row.width)
		}
	}
}
