package analysis

import (
	"fmt"

	"github.com/hed1ad/goinsight/pkg/detectors"
	"github.com/hed1ad/goinsight/pkg/timeseries"
	"github.com/hed1ad/goinsight/pkg/trend"
)

// Config is the full tuning surface of one analysis invocation. A Config is
// a plain value: copy it, change fields, pass it in. Nothing here is shared
// or mutated by the pipeline.
type Config struct {
	// Detectors lists the enabled detectors in vote and column order.
	Detectors []string `json:"detectors" mapstructure:"detectors"`

	ZThreshold float64 `json:"z_threshold" mapstructure:"z_threshold"`
	ZWindow    int     `json:"z_window" mapstructure:"z_window"`

	IQRMultiplier float64 `json:"iqr_multiplier" mapstructure:"iqr_multiplier"`
	IQRWindow     int     `json:"iqr_window" mapstructure:"iqr_window"`

	IsolationSeed           int64   `json:"isolation_seed" mapstructure:"isolation_seed"`
	IsolationScoreThreshold float64 `json:"isolation_score_threshold" mapstructure:"isolation_score_threshold"`
	IsolationTrees          int     `json:"isolation_trees" mapstructure:"isolation_trees"`
	IsolationSampleSize     int     `json:"isolation_sample_size" mapstructure:"isolation_sample_size"`

	MovingAverageWindow     int     `json:"moving_average_window" mapstructure:"moving_average_window"`
	MovingAverageMultiplier float64 `json:"moving_average_multiplier" mapstructure:"moving_average_multiplier"`

	// ConsensusMajorityFraction sets the vote threshold to
	// ceil(fraction * available detectors); 0.5 is a simple majority.
	ConsensusMajorityFraction float64 `json:"consensus_majority_fraction" mapstructure:"consensus_majority_fraction"`

	// SeasonalPeriod fixes the decomposition period; 0 enables
	// autocorrelation-based detection bounded by MaxPeriodLag.
	SeasonalPeriod    int        `json:"seasonal_period" mapstructure:"seasonal_period"`
	MaxPeriodLag      int        `json:"max_period_lag" mapstructure:"max_period_lag"`
	DecompositionMode trend.Mode `json:"decomposition_mode" mapstructure:"decomposition_mode"`

	SmoothingMode   trend.SmoothingMode `json:"smoothing_mode" mapstructure:"smoothing_mode"`
	Alpha           float64             `json:"alpha" mapstructure:"alpha"`
	Beta            float64             `json:"beta" mapstructure:"beta"`
	Gamma           float64             `json:"gamma" mapstructure:"gamma"`
	ForecastHorizon int                 `json:"forecast_horizon" mapstructure:"forecast_horizon"`

	GapFillPolicy   timeseries.GapFillPolicy   `json:"gap_fill_policy" mapstructure:"gap_fill_policy"`
	DuplicatePolicy timeseries.DuplicatePolicy `json:"duplicate_policy" mapstructure:"duplicate_policy"`

	TrendNoiseFloor float64 `json:"trend_noise_floor" mapstructure:"trend_noise_floor"`
}

// DefaultConfig returns the documented defaults: all four detectors with a
// simple-majority consensus, auto-detected seasonality, double exponential
// smoothing over a 7-step horizon, strict duplicate handling off.
func DefaultConfig() Config {
	return Config{
		Detectors: []string{
			detectors.NameZScore,
			detectors.NameIQR,
			detectors.NameIsolation,
			detectors.NameMovingAvg,
		},
		ZThreshold:                3.0,
		IQRMultiplier:             1.5,
		IsolationSeed:             42,
		IsolationScoreThreshold:   0.6,
		IsolationTrees:            100,
		MovingAverageWindow:       7,
		MovingAverageMultiplier:   2.0,
		ConsensusMajorityFraction: 0.5,
		DecompositionMode:         trend.Additive,
		SmoothingMode:             trend.Double,
		Alpha:                     0.3,
		Beta:                      0.1,
		Gamma:                     0.1,
		ForecastHorizon:           7,
		GapFillPolicy:             timeseries.GapFillNone,
		DuplicatePolicy:           timeseries.DuplicateLastWriteWins,
		TrendNoiseFloor:           0.01,
	}
}

// Validate rejects out-of-range values before any data is touched. Detector
// and trend packages re-validate their own parameters; this catches the
// cross-cutting ones so a bad config fails at construction, not mid-run.
func (c Config) Validate() error {
	if len(c.Detectors) == 0 {
		return &timeseries.InvalidParameterError{
			Parameter: "detectors",
			Value:     c.Detectors,
			Reason:    "at least one detector must be enabled",
		}
	}
	for _, name := range c.Detectors {
		switch name {
		case detectors.NameZScore, detectors.NameIQR, detectors.NameIsolation, detectors.NameMovingAvg:
		default:
			return &timeseries.InvalidParameterError{
				Parameter: "detectors",
				Value:     name,
				Reason:    fmt.Sprintf("unknown detector %q", name),
			}
		}
	}
	if err := c.validateDetectorParams(); err != nil {
		return err
	}
	if c.ConsensusMajorityFraction <= 0 || c.ConsensusMajorityFraction > 1 {
		return &timeseries.InvalidParameterError{
			Parameter: "consensus_majority_fraction",
			Value:     c.ConsensusMajorityFraction,
			Reason:    "must be in (0, 1]",
		}
	}
	if c.SeasonalPeriod < 0 {
		return &timeseries.InvalidParameterError{
			Parameter: "seasonal_period",
			Value:     c.SeasonalPeriod,
			Reason:    "must be >= 0 (0 enables detection)",
		}
	}
	if c.SeasonalPeriod == 1 {
		return &timeseries.InvalidParameterError{
			Parameter: "seasonal_period",
			Value:     c.SeasonalPeriod,
			Reason:    "a period of 1 has no seasonal structure",
		}
	}
	if c.MaxPeriodLag < 0 {
		return &timeseries.InvalidParameterError{
			Parameter: "max_period_lag",
			Value:     c.MaxPeriodLag,
			Reason:    "must be >= 0 (0 means unbounded)",
		}
	}
	if !c.DecompositionMode.Valid() {
		return &timeseries.InvalidParameterError{
			Parameter: "decomposition_mode",
			Value:     string(c.DecompositionMode),
			Reason:    "must be additive or multiplicative",
		}
	}
	if !c.SmoothingMode.Valid() {
		return &timeseries.InvalidParameterError{
			Parameter: "smoothing_mode",
			Value:     string(c.SmoothingMode),
			Reason:    "must be single, double, or triple",
		}
	}
	if c.ForecastHorizon < 0 {
		return &timeseries.InvalidParameterError{
			Parameter: "forecast_horizon",
			Value:     c.ForecastHorizon,
			Reason:    "must be >= 0 (0 disables forecasting)",
		}
	}
	if !c.GapFillPolicy.Valid() {
		return &timeseries.InvalidParameterError{
			Parameter: "gap_fill_policy",
			Value:     string(c.GapFillPolicy),
			Reason:    "must be none, forward_fill, or interpolate",
		}
	}
	if !c.DuplicatePolicy.Valid() {
		return &timeseries.InvalidParameterError{
			Parameter: "duplicate_policy",
			Value:     string(c.DuplicatePolicy),
			Reason:    "must be last_write_wins or error",
		}
	}
	if c.TrendNoiseFloor < 0 {
		return &timeseries.InvalidParameterError{
			Parameter: "trend_noise_floor",
			Value:     c.TrendNoiseFloor,
			Reason:    "must be >= 0",
		}
	}
	return nil
}

// validateDetectorParams checks the parameters of the enabled detectors
// only; settings for detectors that are switched off are ignored.
func (c Config) validateDetectorParams() error {
	if c.enabled(detectors.NameZScore) {
		if c.ZThreshold <= 0 {
			return &timeseries.InvalidParameterError{
				Parameter: "z_threshold", Value: c.ZThreshold, Reason: "must be positive",
			}
		}
		if c.ZWindow < 0 {
			return &timeseries.InvalidParameterError{
				Parameter: "z_window", Value: c.ZWindow, Reason: "must be >= 0 (0 uses the whole series)",
			}
		}
	}
	if c.enabled(detectors.NameIQR) {
		if c.IQRMultiplier <= 0 {
			return &timeseries.InvalidParameterError{
				Parameter: "iqr_multiplier", Value: c.IQRMultiplier, Reason: "must be positive",
			}
		}
		if c.IQRWindow < 0 {
			return &timeseries.InvalidParameterError{
				Parameter: "iqr_window", Value: c.IQRWindow, Reason: "must be >= 0 (0 uses the whole series)",
			}
		}
	}
	if c.enabled(detectors.NameIsolation) {
		if c.IsolationTrees <= 0 {
			return &timeseries.InvalidParameterError{
				Parameter: "isolation_trees", Value: c.IsolationTrees, Reason: "must be positive",
			}
		}
		if c.IsolationScoreThreshold <= 0 || c.IsolationScoreThreshold > 1 {
			return &timeseries.InvalidParameterError{
				Parameter: "isolation_score_threshold", Value: c.IsolationScoreThreshold, Reason: "must be in (0, 1]",
			}
		}
		if c.IsolationSampleSize < 0 || c.IsolationSampleSize == 1 {
			return &timeseries.InvalidParameterError{
				Parameter: "isolation_sample_size", Value: c.IsolationSampleSize, Reason: "must be 0 (auto) or at least 2",
			}
		}
	}
	if c.enabled(detectors.NameMovingAvg) {
		if c.MovingAverageWindow < 2 {
			return &timeseries.InvalidParameterError{
				Parameter: "moving_average_window", Value: c.MovingAverageWindow, Reason: "must be at least 2",
			}
		}
		if c.MovingAverageMultiplier <= 0 {
			return &timeseries.InvalidParameterError{
				Parameter: "moving_average_multiplier", Value: c.MovingAverageMultiplier, Reason: "must be positive",
			}
		}
	}
	return nil
}

func (c Config) enabled(name string) bool {
	for _, n := range c.Detectors {
		if n == name {
			return true
		}
	}
	return false
}

// smoothConfig maps the flat configuration onto the trend package's own
// parameter struct for a resolved seasonal period.
func (c Config) smoothConfig(period int) trend.SmoothConfig {
	return trend.SmoothConfig{
		Mode:   c.SmoothingMode,
		Alpha:  c.Alpha,
		Beta:   c.Beta,
		Gamma:  c.Gamma,
		Period: period,
	}
}
