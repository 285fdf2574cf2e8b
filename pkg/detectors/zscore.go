package detectors

import (
	"math"

	"github.com/hed1ad/goinsight/pkg/stats"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// ZScore flags points whose deviation from a baseline mean exceeds
// Threshold standard deviations. With Window == 0 the baseline for each
// point is the rest of the series (leave-one-out); with Window = w it is
// the w points immediately before the evaluated one. The evaluated point
// never contributes to its own baseline — on short series a spike inflates
// inclusive statistics enough to hide itself.
//
// The score is |value-mean|/std. A zero deviation never flags, so an
// all-identical series is never anomalous; the std is floored at a tiny
// epsilon so a constant baseline with a deviating point scores finite.
type ZScore struct {
	// Threshold is the score above which a point is flagged. Default 3.0.
	Threshold float64
	// Window is the trailing baseline width; 0 uses the whole series.
	Window int
}

// NewZScore returns a z-score detector with the given threshold over the
// whole-series baseline.
func NewZScore(threshold float64) *ZScore {
	return &ZScore{Threshold: threshold}
}

func (d *ZScore) Name() string { return NameZScore }

// MinObservations is 3 for the leave-one-out baseline (two points must
// remain) or Window+1 for the windowed one.
func (d *ZScore) MinObservations() int {
	if d.Window > 0 {
		return d.Window + 1
	}
	return 3
}

// Detect evaluates every observed point against its baseline.
func (d *ZScore) Detect(s *timeseries.Series) ([]Result, error) {
	if d.Threshold <= 0 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "z_threshold", Value: d.Threshold, Reason: "must be positive",
		}
	}
	if d.Window < 0 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "z_window", Value: d.Window, Reason: "must not be negative",
		}
	}
	if obs := s.Observed(); obs < d.MinObservations() {
		return nil, insufficient("z-score baseline", d.MinObservations(), obs)
	}

	if d.Window == 0 {
		return d.detectGlobal(s), nil
	}
	return d.detectWindowed(s), nil
}

// detectGlobal scores each point against the mean and sample standard
// deviation of the other observed points, derived in O(1) per point from
// the series sums.
func (d *ZScore) detectGlobal(s *timeseries.Series) []Result {
	var sum, sumSq float64
	count := 0
	for _, p := range s.Points {
		if p.Missing {
			continue
		}
		sum += p.Value
		sumSq += p.Value * p.Value
		count++
	}

	results := make([]Result, s.Len())
	rest := float64(count - 1)
	for i, p := range s.Points {
		if p.Missing {
			continue
		}
		mean := (sum - p.Value) / rest
		variance := (sumSq - p.Value*p.Value - rest*mean*mean) / (rest - 1)
		if variance < 0 {
			variance = 0
		}
		results[i] = d.score(p.Value, mean, math.Sqrt(variance))
	}
	return results
}

// detectWindowed scores each point against the observed points among the
// Window slots before it. Points whose window holds fewer than two
// observations are left unscored.
func (d *ZScore) detectWindowed(s *timeseries.Series) []Result {
	results := make([]Result, s.Len())
	window := make([]float64, 0, d.Window)

	for i, p := range s.Points {
		if p.Missing {
			continue
		}
		window = window[:0]
		for j := i - d.Window; j < i; j++ {
			if j >= 0 && !s.Points[j].Missing {
				window = append(window, s.Points[j].Value)
			}
		}
		if len(window) < 2 {
			continue
		}
		results[i] = d.score(p.Value, stats.Mean(window), stats.StdDev(window))
	}
	return results
}

func (d *ZScore) score(value, mean, std float64) Result {
	dev := math.Abs(value - mean)
	if dev == 0 {
		return Result{}
	}
	z := dev / math.Max(std, minSpread)
	return Result{Score: z, IsOutlier: z > d.Threshold}
}
