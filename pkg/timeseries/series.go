// Package timeseries defines the data model handed between the reporting
// layer and the analytical core: typed tabular datasets, uniform time
// series, and the preparation step that turns one into the other.
package timeseries

import (
	"math"
	"time"
)

// Point is a single observation in a series. Missing marks a grid slot
// introduced by resampling that no gap-fill policy produced a value for.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Missing   bool      `json:"missing,omitempty"`
}

// Series is a uniform, timestamp-ascending sequence of observations for one
// (metric, dimension combination). After preparation, timestamps are
// strictly increasing and unique, spaced by Interval. A Series is owned by
// the pipeline invocation that created it and is never mutated afterwards.
type Series struct {
	Metric     string            `json:"metric"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Points     []Point           `json:"points"`
	Interval   time.Duration     `json:"interval"`
}

// Len returns the number of points, missing slots included.
func (s *Series) Len() int { return len(s.Points) }

// Observed returns the number of non-missing points.
func (s *Series) Observed() int {
	n := 0
	for _, p := range s.Points {
		if !p.Missing {
			n++
		}
	}
	return n
}

// HasMissing reports whether any grid slot is unfilled.
func (s *Series) HasMissing() bool {
	for _, p := range s.Points {
		if p.Missing {
			return true
		}
	}
	return false
}

// MissingCount returns the number of unfilled grid slots.
func (s *Series) MissingCount() int {
	return s.Len() - s.Observed()
}

// Values returns the value column aligned to Points. Missing slots carry
// NaN so accidental use of an unfilled gap poisons the result instead of
// silently passing a zero.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		if p.Missing {
			out[i] = math.NaN()
			continue
		}
		out[i] = p.Value
	}
	return out
}

// ObservedValues returns the non-missing values in timestamp order.
func (s *Series) ObservedValues() []float64 {
	out := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if !p.Missing {
			out = append(out, p.Value)
		}
	}
	return out
}

// End returns the last timestamp, or the zero time for an empty series.
func (s *Series) End() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Timestamp
}

// Validate checks the series invariants: timestamps strictly increasing and
// unique. Prepared series always satisfy them; callers constructing a
// Series by hand are checked at the pipeline boundary.
func (s *Series) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		prev, cur := s.Points[i-1].Timestamp, s.Points[i].Timestamp
		if cur.Equal(prev) {
			return &DuplicateTimestampError{Timestamp: cur, Count: 2}
		}
		if cur.Before(prev) {
			return &SchemaError{Column: "timestamp", Reason: "timestamps not strictly increasing"}
		}
	}
	return nil
}
