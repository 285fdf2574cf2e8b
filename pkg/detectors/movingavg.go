package detectors

import (
	"math"

	"github.com/hed1ad/goinsight/pkg/stats"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// MovingAverage flags points that drift from their trailing moving average
// by more than Multiplier rolling standard deviations. The window includes
// the evaluated point; points without a fully observed window are never
// flagged. The score is the deviation in rolling standard deviations.
type MovingAverage struct {
	// Window is the rolling width. Default 7.
	Window int
	// Multiplier is the deviation threshold in rolling stds. Default 2.0.
	Multiplier float64
}

// NewMovingAverage returns a rolling-deviation detector.
func NewMovingAverage(window int, multiplier float64) *MovingAverage {
	return &MovingAverage{Window: window, Multiplier: multiplier}
}

func (d *MovingAverage) Name() string { return NameMovingAvg }

// MinObservations requires at least one full window.
func (d *MovingAverage) MinObservations() int {
	if d.Window < 2 {
		return 2
	}
	return d.Window
}

// Detect evaluates every point owning a fully observed trailing window.
func (d *MovingAverage) Detect(s *timeseries.Series) ([]Result, error) {
	if d.Window < 2 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "moving_average_window", Value: d.Window, Reason: "must be at least 2",
		}
	}
	if d.Multiplier <= 0 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "moving_average_multiplier", Value: d.Multiplier, Reason: "must be positive",
		}
	}
	if obs := s.Observed(); obs < d.MinObservations() {
		return nil, insufficient("moving-average baseline", d.MinObservations(), obs)
	}

	results := make([]Result, s.Len())
	window := make([]float64, 0, d.Window)
	for i := d.Window - 1; i < s.Len(); i++ {
		if s.Points[i].Missing {
			continue
		}
		window = window[:0]
		full := true
		for j := i - d.Window + 1; j <= i; j++ {
			if s.Points[j].Missing {
				full = false
				break
			}
			window = append(window, s.Points[j].Value)
		}
		if !full {
			continue
		}

		dev := math.Abs(s.Points[i].Value - stats.Mean(window))
		if dev == 0 {
			continue
		}
		score := dev / math.Max(stats.StdDev(window), minSpread)
		results[i] = Result{Score: score, IsOutlier: score > d.Multiplier}
	}
	return results, nil
}
