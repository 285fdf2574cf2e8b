// Package detectors implements the outlier detectors of the anomaly
// detection ensemble and the consensus vote that combines them.
package detectors

import "github.com/hed1ad/goinsight/pkg/timeseries"

// Detector names as they appear in report columns and configuration.
const (
	NameZScore    = "zscore"
	NameIQR       = "iqr"
	NameIsolation = "iforest"
	NameMovingAvg = "moving_avg"
)

// Detector flags statistically unusual points in a prepared series. A
// Detector is a stateless pure function of the series and its own
// parameters: Detect never mutates the series and repeated calls with the
// same input yield identical results.
type Detector interface {
	// Name identifies the detector in report columns and exclusion records.
	Name() string

	// MinObservations is the smallest number of observed points Detect can
	// work with. Shorter series make the detector unavailable rather than
	// failing the whole ensemble.
	MinObservations() int

	// Detect returns one Result per series point, index-aligned. Missing
	// points receive a zero Result and never vote.
	Detect(s *timeseries.Series) ([]Result, error)
}

// Result is a single detector's verdict for a single point.
type Result struct {
	Score     float64 `json:"score"`
	IsOutlier bool    `json:"is_outlier"`
}

// minSpread floors the denominator of deviation scores so a constant
// baseline with a deviating point yields a very large finite score instead
// of a division by zero.
const minSpread = 1e-12

// insufficient builds the error detectors return when a series is too
// short for their baseline.
func insufficient(op string, required, actual int) error {
	return &timeseries.InsufficientDataError{Operation: op, Required: required, Actual: actual}
}
