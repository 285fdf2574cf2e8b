package trend

import (
	"math"
	"time"

	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// ForecastPoint is one projected observation beyond the observed range.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Point     float64   `json:"point"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// zCritical95 is the two-sided 95% normal quantile used for bounds.
const zCritical95 = 1.96

// Forecast extrapolates the final smoothed state h steps beyond the
// observed range. Bounds widen with the square root of the step index:
// point ± 1.96·σ·√k for step k, with σ the in-sample residual standard
// deviation — deterministic and monotonically non-decreasing in k.
func (f *Fit) Forecast(h int) ([]ForecastPoint, error) {
	if h < 1 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "forecast_horizon", Value: h, Reason: "must be at least 1",
		}
	}

	out := make([]ForecastPoint, h)
	for k := 1; k <= h; k++ {
		var point float64
		switch f.Mode {
		case Single:
			point = f.Level
		case Double:
			point = f.Level + float64(k)*f.Trend
		case Triple:
			point = f.Level + float64(k)*f.Trend + f.Seasonal[(k-1)%f.period]
		}

		margin := zCritical95 * f.sigma * math.Sqrt(float64(k))
		out[k-1] = ForecastPoint{
			Timestamp: f.last.Add(time.Duration(k) * f.interval),
			Point:     point,
			Lower:     point - margin,
			Upper:     point + margin,
		}
	}
	return out, nil
}
