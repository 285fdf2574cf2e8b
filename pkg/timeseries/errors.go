package timeseries

import (
	"fmt"
	"time"
)

// SchemaError reports input that does not match the declared schema: a
// missing column, an unparseable cell, or a series violating the
// timestamp invariants.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: column %q: %s", e.Column, e.Reason)
}

// DuplicateTimestampError reports rows sharing one timestamp within a group
// under the strict duplicate policy.
type DuplicateTimestampError struct {
	Timestamp time.Time
	Count     int
}

func (e *DuplicateTimestampError) Error() string {
	return fmt.Sprintf("duplicate timestamp %s (%d rows)", e.Timestamp.Format(time.RFC3339), e.Count)
}

// InsufficientDataError reports a series too short for a requested
// operation.
type InsufficientDataError struct {
	Operation string
	Required  int
	Actual    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s requires at least %d points, got %d", e.Operation, e.Required, e.Actual)
}

// InvalidParameterError reports out-of-range configuration.
type InvalidParameterError struct {
	Parameter string
	Value     any
	Reason    string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Parameter, e.Value, e.Reason)
}

// DetectorUnavailableError reports an ensemble member that could not run.
// The ensemble recovers it locally: the detector is excluded from the vote,
// the vote denominator shrinks, and the exclusion is recorded in the report.
type DetectorUnavailableError struct {
	Detector string
	Reason   string
}

func (e *DetectorUnavailableError) Error() string {
	return fmt.Sprintf("detector %s unavailable: %s", e.Detector, e.Reason)
}

// MissingValueError reports unfilled gaps reaching a computation that
// requires a contiguous series, such as decomposition or smoothing. Pick a
// gap-fill policy other than "none" to analyze gappy input.
type MissingValueError struct {
	Operation string
	Missing   int
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("%s cannot run over %d unfilled gaps", e.Operation, e.Missing)
}
