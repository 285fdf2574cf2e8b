// Package trend separates structural signal from noise and projects
// bounded short-horizon forecasts.
package trend

import (
	"github.com/hed1ad/goinsight/pkg/stats"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// Mode selects the decomposition model.
type Mode string

const (
	// Additive decomposes value = trend + seasonal + residual.
	Additive Mode = "additive"
	// Multiplicative decomposes value = trend * seasonal * residual and
	// requires strictly positive values.
	Multiplicative Mode = "multiplicative"
)

// Valid reports whether m names a known decomposition model.
func (m Mode) Valid() bool {
	return m == Additive || m == Multiplicative
}

// Decomposition holds the per-point components of a series. For every
// observed point the components recombine to the original value under the
// mode's law, up to floating-point rounding.
type Decomposition struct {
	Mode     Mode      `json:"mode"`
	Period   int       `json:"period"`
	Trend    []float64 `json:"trend"`
	Seasonal []float64 `json:"seasonal"`
	Residual []float64 `json:"residual"`
}

// Decompose splits a gap-free series into trend, seasonal, and residual
// components: trend from a centered moving average of window period,
// seasonal from phase-averaged detrended values (centered so the indices
// sum to ~0 additive, mean ~1 multiplicative), residual as the remainder.
// The trend is held at its nearest computed value over the half-window
// edges so every observed row carries defined components.
//
// Requires at least 2*period observations.
func Decompose(s *timeseries.Series, period int, mode Mode) (*Decomposition, error) {
	if period < 2 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "seasonal_period", Value: period, Reason: "must be at least 2",
		}
	}
	if !mode.Valid() {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "decomposition_mode", Value: string(mode), Reason: "must be additive or multiplicative",
		}
	}
	if s.HasMissing() {
		return nil, &timeseries.MissingValueError{
			Operation: "seasonal decomposition", Missing: s.MissingCount(),
		}
	}
	n := s.Len()
	if n < 2*period {
		return nil, &timeseries.InsufficientDataError{
			Operation: "seasonal decomposition", Required: 2 * period, Actual: n,
		}
	}

	values := s.Values()
	if mode == Multiplicative {
		for _, v := range values {
			if v <= 0 {
				return nil, &timeseries.InvalidParameterError{
					Parameter: "decomposition_mode",
					Value:     string(mode),
					Reason:    "multiplicative decomposition requires strictly positive values",
				}
			}
		}
	}

	trendLine, lo, hi := centeredMovingAverage(values, period)

	// Seasonal indices averaged over the region with a computed trend only.
	phaseSum := make([]float64, period)
	phaseCount := make([]int, period)
	for i := lo; i <= hi; i++ {
		phase := i % period
		if mode == Additive {
			phaseSum[phase] += values[i] - trendLine[i]
		} else {
			phaseSum[phase] += values[i] / trendLine[i]
		}
		phaseCount[phase]++
	}
	indices := make([]float64, period)
	for p := range indices {
		if phaseCount[p] > 0 {
			indices[p] = phaseSum[p] / float64(phaseCount[p])
		} else if mode == Multiplicative {
			indices[p] = 1
		}
	}
	centerIndices(indices, mode)

	d := &Decomposition{
		Mode:     mode,
		Period:   period,
		Trend:    trendLine,
		Seasonal: make([]float64, n),
		Residual: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		d.Seasonal[i] = indices[i%period]
		if mode == Additive {
			d.Residual[i] = values[i] - d.Trend[i] - d.Seasonal[i]
		} else {
			d.Residual[i] = values[i] / (d.Trend[i] * d.Seasonal[i])
		}
	}
	return d, nil
}

// DecomposeLinear is the fallback used when no seasonal period is
// configured or detected: the trend is the least-squares line, the seasonal
// component is zero, and the residual is the remainder. Always additive.
func DecomposeLinear(s *timeseries.Series) (*Decomposition, error) {
	if s.HasMissing() {
		return nil, &timeseries.MissingValueError{
			Operation: "trend extraction", Missing: s.MissingCount(),
		}
	}
	n := s.Len()
	if n < 2 {
		return nil, &timeseries.InsufficientDataError{
			Operation: "trend extraction", Required: 2, Actual: n,
		}
	}

	values := s.Values()
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	slope, intercept := stats.FitLine(xs, values)

	d := &Decomposition{
		Mode:     Additive,
		Trend:    make([]float64, n),
		Seasonal: make([]float64, n),
		Residual: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		d.Trend[i] = slope*float64(i) + intercept
		d.Residual[i] = values[i] - d.Trend[i]
	}
	return d, nil
}

// centeredMovingAverage returns the trend line plus the first and last
// index with a fully computed window. Even periods use the classic 2xp
// average with half-weight endpoints. Edges outside [lo, hi] hold the
// nearest computed value.
func centeredMovingAverage(values []float64, period int) (trend []float64, lo, hi int) {
	n := len(values)
	trend = make([]float64, n)

	if period%2 == 1 {
		half := period / 2
		lo, hi = half, n-1-half
		for i := lo; i <= hi; i++ {
			var sum float64
			for j := i - half; j <= i+half; j++ {
				sum += values[j]
			}
			trend[i] = sum / float64(period)
		}
	} else {
		half := period / 2
		lo, hi = half, n-1-half
		for i := lo; i <= hi; i++ {
			sum := values[i-half]/2 + values[i+half]/2
			for j := i - half + 1; j <= i+half-1; j++ {
				sum += values[j]
			}
			trend[i] = sum / float64(period)
		}
	}

	for i := 0; i < lo; i++ {
		trend[i] = trend[lo]
	}
	for i := hi + 1; i < n; i++ {
		trend[i] = trend[hi]
	}
	return trend, lo, hi
}

// centerIndices normalizes seasonal indices so they cancel over one period.
func centerIndices(indices []float64, mode Mode) {
	mean := stats.Mean(indices)
	if mode == Additive {
		for i := range indices {
			indices[i] -= mean
		}
		return
	}
	if mean == 0 {
		return
	}
	for i := range indices {
		indices[i] /= mean
	}
}
