/*package analyze computes summary statistics of exported grids.
*/
package analyze

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the values of a grid. NaN and infinite values are
// counted and left out of every other statistic.
type Stats struct {
	N                   int
	Min, Max, Mean, Std float64
	Zeros, NonFinite    int
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"n=%d min=%.4g max=%.4g mean=%.4g std=%.4g zeros=%d nonfinite=%d",
		s.N, s.Min, s.Max, s.Mean, s.Std, s.Zeros, s.NonFinite,
	)
}

// Describe returns the statistics of xs.
func Describe(xs []float64) Stats {
	s := Stats{N: len(xs)}
	finite := make([]float64, 0, len(xs))
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			s.NonFinite++
			continue
		}
		if x == 0 {
			s.Zeros++
		}
		finite = append(finite, x)
	}

	if len(finite) == 0 {
		return s
	}
	s.Min, s.Max = floats.Min(finite), floats.Max(finite)
	if len(finite) == 1 {
		s.Mean = finite[0]
		return s
	}
	s.Mean, s.Std = stat.MeanStdDev(finite, nil)
	return s
}

// Float64s widens a grid read back from disk.
func Float64s(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		out[i] = float64(xs[i])
	}
	return out
}
