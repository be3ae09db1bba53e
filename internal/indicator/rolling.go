package indicator

import (
	"math"

	"github.com/shopspring/decimal"
)

// RollingMax calculates the maximum over a trailing window that includes the
// current value. Early positions use all values available so far, so the
// result has the same length as the input.
func RollingMax(values []float64, window int) []float64 {
	result := make([]float64, len(values))
	for i := range values {
		result[i] = WindowMax(values, i, window)
	}
	return result
}

// WindowMax returns the maximum of values[i-window+1 : i+1], clamped at the
// start of the slice. It never reads past index i.
func WindowMax(values []float64, i, window int) float64 {
	if window < 1 {
		window = 1
	}
	start := i - window + 1
	if start < 0 {
		start = 0
	}

	m := values[start]
	for _, v := range values[start+1 : i+1] {
		if v > m {
			m = v
		}
	}
	return m
}

// PctChange returns the percentage change from reference to current,
// rounded to two decimals so that threshold comparisons such as -10.00%
// are not defeated by floating point noise.
func PctChange(current, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	return math.Round((current/reference-1)*100*100) / 100
}

// GainReached reports whether current is at least pct percent above
// reference. The comparison is exact in decimal and never rounded.
func GainReached(current, reference, pct float64) bool {
	if !(reference > 0) {
		return false
	}
	threshold := decimal.NewFromFloat(reference).Mul(decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)).Add(decimal.NewFromInt(1)))
	return decimal.NewFromFloat(current).GreaterThanOrEqual(threshold)
}
