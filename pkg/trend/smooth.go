package trend

import (
	"time"

	"github.com/hed1ad/goinsight/pkg/stats"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// SmoothingMode selects the exponential smoothing family.
type SmoothingMode string

const (
	// Single tracks level only.
	Single SmoothingMode = "single"
	// Double tracks level and trend (Holt).
	Double SmoothingMode = "double"
	// Triple tracks level, trend, and additive seasonality (Holt-Winters).
	Triple SmoothingMode = "triple"
)

// Valid reports whether m names a known smoothing family.
func (m SmoothingMode) Valid() bool {
	switch m {
	case Single, Double, Triple:
		return true
	}
	return false
}

// SmoothConfig holds the smoothing coefficients. Alpha weighs the level,
// Beta the trend (double/triple), Gamma the seasonal states (triple); each
// must lie strictly inside (0, 1). Period is the seasonal period for
// triple smoothing.
type SmoothConfig struct {
	Mode   SmoothingMode
	Alpha  float64
	Beta   float64
	Gamma  float64
	Period int
}

func (c SmoothConfig) validate(n int) error {
	if !c.Mode.Valid() {
		return &timeseries.InvalidParameterError{
			Parameter: "smoothing_mode", Value: string(c.Mode), Reason: "must be single, double, or triple",
		}
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return &timeseries.InvalidParameterError{
			Parameter: "alpha", Value: c.Alpha, Reason: "must be in (0, 1)",
		}
	}
	if c.Mode == Double || c.Mode == Triple {
		if c.Beta <= 0 || c.Beta >= 1 {
			return &timeseries.InvalidParameterError{
				Parameter: "beta", Value: c.Beta, Reason: "must be in (0, 1)",
			}
		}
	}
	if c.Mode == Triple {
		if c.Gamma <= 0 || c.Gamma >= 1 {
			return &timeseries.InvalidParameterError{
				Parameter: "gamma", Value: c.Gamma, Reason: "must be in (0, 1)",
			}
		}
		if c.Period < 2 {
			return &timeseries.InvalidParameterError{
				Parameter: "seasonal_period", Value: c.Period, Reason: "triple smoothing requires a period of at least 2",
			}
		}
	}

	required := 2
	switch c.Mode {
	case Double:
		required = 3
	case Triple:
		required = 2 * c.Period
	}
	if n < required {
		return &timeseries.InsufficientDataError{
			Operation: string(c.Mode) + " exponential smoothing", Required: required, Actual: n,
		}
	}
	return nil
}

// Fit is the final smoothed state of a series plus its in-sample one-step
// predictions. Warm-up points (the first observation, or the first period
// for triple smoothing) carry zero residuals and are excluded from the
// residual spread used for forecast bounds.
type Fit struct {
	Mode SmoothingMode `json:"mode"`
	// Level, Trend, and Seasonal are the final recurrence states.
	Level    float64   `json:"level"`
	Trend    float64   `json:"trend,omitempty"`
	Seasonal []float64 `json:"seasonal,omitempty"`
	// Fitted holds the one-step-ahead predictions, index-aligned.
	Fitted []float64 `json:"fitted"`
	// Residuals holds value minus fitted, index-aligned.
	Residuals []float64 `json:"residuals"`

	sigma    float64
	period   int
	last     time.Time
	interval time.Duration
}

// Smooth runs the configured exponential smoothing recurrence over the
// series, strictly sequentially in timestamp order. The series must be
// gap-free.
func Smooth(s *timeseries.Series, cfg SmoothConfig) (*Fit, error) {
	if s.HasMissing() {
		return nil, &timeseries.MissingValueError{
			Operation: "exponential smoothing", Missing: s.MissingCount(),
		}
	}
	if err := cfg.validate(s.Len()); err != nil {
		return nil, err
	}

	values := s.Values()
	f := &Fit{
		Mode:      cfg.Mode,
		Fitted:    make([]float64, len(values)),
		Residuals: make([]float64, len(values)),
		period:    cfg.Period,
		last:      s.End(),
		interval:  s.Interval,
	}

	warmup := 1
	switch cfg.Mode {
	case Single:
		f.smoothSingle(values, cfg.Alpha)
	case Double:
		f.smoothDouble(values, cfg.Alpha, cfg.Beta)
	case Triple:
		warmup = cfg.Period
		f.smoothTriple(values, cfg)
	}

	if len(values) > warmup {
		f.sigma = stats.StdDev(f.Residuals[warmup:])
	}
	return f, nil
}

func (f *Fit) smoothSingle(values []float64, alpha float64) {
	level := values[0]
	f.Fitted[0] = values[0]
	for i := 1; i < len(values); i++ {
		f.Fitted[i] = level
		f.Residuals[i] = values[i] - level
		level = alpha*values[i] + (1-alpha)*level
	}
	f.Level = level
}

func (f *Fit) smoothDouble(values []float64, alpha, beta float64) {
	level := values[0]
	trend := values[1] - values[0]
	f.Fitted[0] = values[0]
	for i := 1; i < len(values); i++ {
		predicted := level + trend
		f.Fitted[i] = predicted
		f.Residuals[i] = values[i] - predicted

		next := alpha*values[i] + (1-alpha)*predicted
		trend = beta*(next-level) + (1-beta)*trend
		level = next
	}
	f.Level = level
	f.Trend = trend
}

func (f *Fit) smoothTriple(values []float64, cfg SmoothConfig) {
	p := cfg.Period
	n := len(values)

	mean1 := stats.Mean(values[:p])
	mean2 := stats.Mean(values[p : 2*p])
	level := mean1
	trend := (mean2 - mean1) / float64(p)

	// One seasonal state per observation; the first period holds the
	// initial indices.
	seasonal := make([]float64, n)
	for j := 0; j < p; j++ {
		seasonal[j] = values[j] - mean1
		f.Fitted[j] = values[j]
	}

	for i := p; i < n; i++ {
		predicted := level + trend + seasonal[i-p]
		f.Fitted[i] = predicted
		f.Residuals[i] = values[i] - predicted

		next := cfg.Alpha*(values[i]-seasonal[i-p]) + (1-cfg.Alpha)*(level+trend)
		trend = cfg.Beta*(next-level) + (1-cfg.Beta)*trend
		seasonal[i] = cfg.Gamma*(values[i]-next) + (1-cfg.Gamma)*seasonal[i-p]
		level = next
	}

	f.Level = level
	f.Trend = trend
	f.Seasonal = seasonal[n-p:]
}
