package trend

import (
	"github.com/hed1ad/goinsight/pkg/stats"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// minSeasonalACF is the autocorrelation a lag must reach to count as a
// seasonal period.
const minSeasonalACF = 0.4

// DetectPeriod scans candidate seasonal periods and returns the lag with
// the strongest autocorrelation at or above the acceptance floor, or 0
// when no candidate qualifies. The least-squares line is removed first —
// a trend leaks correlation into every short lag and would masquerade as a
// period of 2. Candidates run from 2 to min(maxLag, n/2), so a detected
// period always leaves two full cycles in the series; maxLag <= 0 means no
// extra cap. Series with unfilled gaps are never seasonal.
func DetectPeriod(s *timeseries.Series, maxLag int) int {
	if s.HasMissing() {
		return 0
	}
	values := detrended(s.Values())
	limit := len(values) / 2
	if maxLag > 0 && maxLag < limit {
		limit = maxLag
	}

	best := 0
	bestACF := 0.0
	for lag := 2; lag <= limit; lag++ {
		acf := stats.Autocorrelation(values, lag)
		if acf >= minSeasonalACF && acf > bestACF {
			best, bestACF = lag, acf
		}
	}
	return best
}

// detrended subtracts the least-squares line fitted over the grid indices.
func detrended(values []float64) []float64 {
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	slope, intercept := stats.FitLine(xs, values)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v - (slope*float64(i) + intercept)
	}
	return out
}
