/*package sweep runs one experiment per value of a swept simulation
parameter and records how each run went.
*/
package sweep

import (
	"fmt"

	"github.com/phil-mansfield/table"
)

// Linspace returns n evenly spaced values from min to max, both included.
func Linspace(min, max float64, n int) []float64 {
	if n <= 0 {
		return nil
	} else if n == 1 {
		return []float64{min}
	}

	xs := make([]float64, n)
	dx := (max - min) / float64(n-1)
	for i := range xs {
		xs[i] = min + dx*float64(i)
	}
	xs[n-1] = max
	return xs
}

// ReadValues reads the first column of a whitespace-separated text table.
// Lines starting with '#' are comments.
func ReadValues(fname string) ([]float64, error) {
	cols, err := table.ReadTable(fname, []int{0}, nil)
	if err != nil {
		return nil, err
	}
	if len(cols[0]) == 0 {
		return nil, fmt.Errorf("Values file '%s' is empty.", fname)
	}
	return cols[0], nil
}

// FormatValues writes each value with the given printf format.
func FormatValues(xs []float64, format string) []string {
	if format == "" {
		format = "%.6f"
	}
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = fmt.Sprintf(format, x)
	}
	return out
}

// Values returns the formatted parameter values of a sweep: the first column
// of valuesFile if it is set, and Linspace(min, max, count) otherwise.
func Values(min, max float64, count int, valuesFile, format string) ([]string, error) {
	if valuesFile == "" {
		return FormatValues(Linspace(min, max, count), format), nil
	}
	xs, err := ReadValues(valuesFile)
	if err != nil {
		return nil, err
	}
	return FormatValues(xs, format), nil
}
