package report

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MeanStdDev returns the mean and the sample standard deviation of xs.
// Fewer than two values have no spread.
func MeanStdDev(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// Quantile returns the p-quantile (0 <= p <= 1) of xs using the empirical
// distribution. xs does not need to be sorted.
func Quantile(p float64, xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}
