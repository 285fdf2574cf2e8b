package detectors

import (
	"github.com/hed1ad/goinsight/pkg/stats"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// IQRFence flags points outside the Tukey fence
// [Q1 - K·IQR, Q3 + K·IQR]. Quartiles are taken over the whole series
// (Window == 0) or the trailing Window points ending at the evaluated one,
// with linear interpolation between order statistics. The score is the
// distance beyond the nearest fence in IQR units; points on or inside the
// fence score zero.
type IQRFence struct {
	// Multiplier is the fence width K. Default 1.5.
	Multiplier float64
	// Window is the trailing quartile window; 0 uses the whole series.
	Window int
}

// NewIQRFence returns a fence detector over the whole-series quartiles.
func NewIQRFence(multiplier float64) *IQRFence {
	return &IQRFence{Multiplier: multiplier}
}

func (d *IQRFence) Name() string { return NameIQR }

// MinObservations is 4 so the quartiles rest on distinct order statistics,
// or the window size for the windowed variant.
func (d *IQRFence) MinObservations() int {
	if d.Window > 4 {
		return d.Window
	}
	return 4
}

// Detect evaluates every observed point against its fence.
func (d *IQRFence) Detect(s *timeseries.Series) ([]Result, error) {
	if d.Multiplier <= 0 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "iqr_multiplier", Value: d.Multiplier, Reason: "must be positive",
		}
	}
	if d.Window < 0 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "iqr_window", Value: d.Window, Reason: "must not be negative",
		}
	}
	if obs := s.Observed(); obs < d.MinObservations() {
		return nil, insufficient("IQR fence", d.MinObservations(), obs)
	}

	results := make([]Result, s.Len())
	if d.Window == 0 {
		f := newFence(s.ObservedValues(), d.Multiplier)
		for i, p := range s.Points {
			if !p.Missing {
				results[i] = f.evaluate(p.Value)
			}
		}
		return results, nil
	}

	window := make([]float64, 0, d.Window)
	for i, p := range s.Points {
		if p.Missing {
			continue
		}
		window = window[:0]
		for j := i - d.Window + 1; j <= i; j++ {
			if j >= 0 && !s.Points[j].Missing {
				window = append(window, s.Points[j].Value)
			}
		}
		if len(window) < 4 {
			continue
		}
		results[i] = newFence(window, d.Multiplier).evaluate(p.Value)
	}
	return results, nil
}

type fence struct {
	lower, upper, iqr float64
}

func newFence(values []float64, multiplier float64) fence {
	q1 := stats.Quantile(values, 0.25)
	q3 := stats.Quantile(values, 0.75)
	iqr := q3 - q1
	return fence{
		lower: q1 - multiplier*iqr,
		upper: q3 + multiplier*iqr,
		iqr:   iqr,
	}
}

func (f fence) evaluate(value float64) Result {
	var dist float64
	switch {
	case value < f.lower:
		dist = f.lower - value
	case value > f.upper:
		dist = value - f.upper
	default:
		return Result{}
	}
	spread := f.iqr
	if spread < minSpread {
		spread = minSpread
	}
	return Result{Score: dist / spread, IsOutlier: true}
}
