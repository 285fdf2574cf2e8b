// Package stats provides the statistical primitives shared by the anomaly
// detectors and the trend engine.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the sample variance (n-1 denominator), or 0 when fewer
// than two values are given.
func Variance(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return ss / float64(n-1)
}

// StdDev returns the sample standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Quantile returns the q-th quantile (q in [0, 1]) using linear
// interpolation between order statistics. The input is not modified.
func Quantile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		q = 0
	}
	if q >= 1 {
		q = 1
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := q * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// FitLine fits y = slope*x + intercept by least squares over the given
// points. Fewer than two points yield a horizontal line through the mean.
func FitLine(xs, ys []float64) (slope, intercept float64) {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0, 0
	}
	if n < 2 {
		return 0, ys[0]
	}

	meanX := Mean(xs)
	meanY := Mean(ys)

	var num, den float64
	for i := range xs {
		dx := xs[i] - meanX
		num += dx * (ys[i] - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, meanY
	}
	slope = num / den
	intercept = meanY - slope*meanX
	return slope, intercept
}

// RSquared returns the coefficient of determination of the given line over
// the points, in [0, 1]. A constant input yields 0.
func RSquared(xs, ys []float64, slope, intercept float64) float64 {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0
	}

	meanY := Mean(ys)
	var ssTot, ssRes float64
	for i := range ys {
		d := ys[i] - meanY
		ssTot += d * d
		r := ys[i] - (slope*xs[i] + intercept)
		ssRes += r * r
	}
	if ssTot == 0 {
		return 0
	}
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		return 0
	}
	return r2
}

// Autocorrelation returns the autocorrelation of the series at the given
// lag, normalized by the full-series variance. Lags outside (0, n) yield 0.
func Autocorrelation(values []float64, lag int) float64 {
	n := len(values)
	if lag <= 0 || lag >= n {
		return 0
	}

	mean := Mean(values)
	var den float64
	for _, v := range values {
		d := v - mean
		den += d * d
	}
	if den == 0 {
		return 0
	}

	var num float64
	for i := 0; i < n-lag; i++ {
		num += (values[i] - mean) * (values[i+lag] - mean)
	}
	return num / den
}

// Diff returns the successive differences values[i+1] - values[i]. The
// result has length len(values)-1, or 0 for shorter inputs.
func Diff(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}
