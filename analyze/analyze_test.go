package analyze

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	s := Describe([]float64{0, 2, 4, math.NaN(), math.Inf(1)})
	assert.Equal(t, 5, s.N)
	assert.Equal(t, 2, s.NonFinite)
	assert.Equal(t, 1, s.Zeros)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 2.0, s.Mean, 1e-12)
	// Sample standard deviation.
	assert.InDelta(t, 2.0, s.Std, 1e-12)
}

func TestDescribeDegenerate(t *testing.T) {
	assert.Equal(t, Stats{}, Describe(nil))
	assert.Equal(t, Stats{N: 1, NonFinite: 1}, Describe([]float64{math.NaN()}))

	s := Describe([]float64{3})
	assert.Equal(t, Stats{N: 1, Min: 3, Max: 3, Mean: 3}, s)
	assert.Contains(t, s.String(), "mean=3")
}

func TestFloat64s(t *testing.T) {
	assert.Equal(t, []float64{1.5, -2}, Float64s([]float32{1.5, -2}))
}
