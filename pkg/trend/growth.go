package trend

import (
	"math"

	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// GrowthMetrics summarize relative change across the observed span. All
// rates are fractions (0.1 = +10%). Rates with an undefined base (zero or
// sign-crossing endpoints) are reported as 0.
type GrowthMetrics struct {
	// Total is the relative change from the first to the last observation.
	Total float64 `json:"total"`
	// MeanStep is the mean period-over-period relative change.
	MeanStep float64 `json:"mean_step"`
	// Compound is the compound per-period growth rate across the span.
	Compound float64 `json:"compound"`
}

// Growth computes the growth summary over the observed points.
func Growth(s *timeseries.Series) GrowthMetrics {
	values := s.ObservedValues()
	if len(values) < 2 {
		return GrowthMetrics{}
	}

	var g GrowthMetrics
	first, last := values[0], values[len(values)-1]
	if first != 0 {
		g.Total = (last - first) / math.Abs(first)
	}

	var sum float64
	steps := 0
	for i := 1; i < len(values); i++ {
		if prev := values[i-1]; prev != 0 {
			sum += (values[i] - prev) / math.Abs(prev)
			steps++
		}
	}
	if steps > 0 {
		g.MeanStep = sum / float64(steps)
	}

	if first > 0 && last > 0 {
		g.Compound = math.Pow(last/first, 1/float64(len(values)-1)) - 1
	}
	return g
}

// Extrema holds the row indices of local peaks and troughs.
type Extrema struct {
	Peaks   []int `json:"peaks,omitempty"`
	Troughs []int `json:"troughs,omitempty"`
}

// PeaksAndTroughs returns the indices of points strictly above or below
// both observed neighbors. Points next to a missing slot are skipped.
func PeaksAndTroughs(s *timeseries.Series) Extrema {
	var e Extrema
	for i := 1; i < s.Len()-1; i++ {
		prev, cur, next := s.Points[i-1], s.Points[i], s.Points[i+1]
		if prev.Missing || cur.Missing || next.Missing {
			continue
		}
		switch {
		case cur.Value > prev.Value && cur.Value > next.Value:
			e.Peaks = append(e.Peaks, i)
		case cur.Value < prev.Value && cur.Value < next.Value:
			e.Troughs = append(e.Troughs, i)
		}
	}
	return e
}
