package bench

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Summary contains descriptive statistics for a sample.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	P50    float64
	P90    float64
	P99    float64
}

// Describe computes descriptive statistics for a sample.
// The sample is not modified.
func Describe(sample []float64) Summary {
	if len(sample) == 0 {
		return Summary{}
	}

	sorted := slices.Clone(sample)
	slices.Sort(sorted)

	s := Summary{
		N:    len(sorted),
		Mean: stat.Mean(sorted, nil),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P50:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90:  stat.Quantile(0.90, stat.Empirical, sorted, nil),
		P99:  stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}
