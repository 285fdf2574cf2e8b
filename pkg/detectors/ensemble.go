package detectors

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// Consensus is the combined verdict for one point.
type Consensus struct {
	Votes     int  `json:"votes"`
	Total     int  `json:"total"`
	IsAnomaly bool `json:"is_anomaly"`
}

// Exclusion records an ensemble member that could not contribute to the
// vote, and why.
type Exclusion struct {
	Detector string `json:"detector"`
	Reason   string `json:"reason"`
}

// EnsembleResult carries the per-detector verdicts of the members that ran,
// the consensus column, and the members that were excluded.
type EnsembleResult struct {
	// Detectors lists the contributing members in configured order.
	Detectors []string
	// Results holds one verdict slice per contributing member,
	// index-aligned to the series.
	Results map[string][]Result
	// Consensus is the vote outcome per point.
	Consensus []Consensus
	// Excluded lists members that could not run.
	Excluded []Exclusion
}

// Ensemble runs independent detectors over one series and combines their
// verdicts by majority vote. Members run concurrently; each reads the same
// immutable series and writes only its own slot, so execution order never
// affects the result.
type Ensemble struct {
	members  []Detector
	fraction float64
	logger   *zap.Logger
}

// EnsembleOption configures an Ensemble.
type EnsembleOption func(*Ensemble)

// WithLogger attaches a logger for exclusion and timing diagnostics.
func WithLogger(l *zap.Logger) EnsembleOption {
	return func(e *Ensemble) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEnsemble builds an ensemble over the given members. fraction is the
// majority fraction in (0, 1]: a point is a consensus anomaly when
// votes >= ceil(fraction * contributing members). 0.5 is a simple majority.
func NewEnsemble(members []Detector, fraction float64, opts ...EnsembleOption) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "detectors", Value: len(members), Reason: "at least one detector required",
		}
	}
	if fraction <= 0 || fraction > 1 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "consensus_majority_fraction", Value: fraction, Reason: "must be in (0, 1]",
		}
	}

	e := &Ensemble{members: members, fraction: fraction, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run fans the detectors out, waits for all of them, and folds their votes
// into the consensus. A failing member is excluded and shrinks the vote
// denominator; it never aborts the ensemble. With every member excluded the
// consensus flags nothing and the exclusions tell the caller why.
func (e *Ensemble) Run(s *timeseries.Series) (*EnsembleResult, error) {
	type outcome struct {
		results []Result
		err     error
	}
	outcomes := make([]outcome, len(e.members))

	var g errgroup.Group
	for i, det := range e.members {
		i, det := i, det // per-iteration copies for the closure (pre-1.22 loop semantics)
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = outcome{err: &timeseries.DetectorUnavailableError{
						Detector: det.Name(),
						Reason:   fmt.Sprintf("panic: %v", r),
					}}
				}
			}()
			res, err := det.Detect(s)
			outcomes[i] = outcome{results: res, err: err}
			return nil
		})
	}
	_ = g.Wait() // members never return errors through the group

	out := &EnsembleResult{
		Results:   make(map[string][]Result, len(e.members)),
		Consensus: make([]Consensus, s.Len()),
	}
	for i, det := range e.members {
		if err := outcomes[i].err; err != nil {
			out.Excluded = append(out.Excluded, Exclusion{
				Detector: det.Name(),
				Reason:   exclusionReason(err),
			})
			e.logger.Debug("detector excluded",
				zap.String("detector", det.Name()),
				zap.Error(err))
			continue
		}
		out.Detectors = append(out.Detectors, det.Name())
		out.Results[det.Name()] = outcomes[i].results
	}

	total := len(out.Detectors)
	// Small slack absorbs binary rounding of fraction*total.
	threshold := int(math.Ceil(e.fraction*float64(total) - 1e-9))
	if threshold < 1 {
		threshold = 1
	}

	for i := range out.Consensus {
		votes := 0
		for _, name := range out.Detectors {
			if out.Results[name][i].IsOutlier {
				votes++
			}
		}
		out.Consensus[i] = Consensus{
			Votes:     votes,
			Total:     total,
			IsAnomaly: total > 0 && votes >= threshold,
		}
	}
	return out, nil
}

// exclusionReason prefers the reason carried by a typed unavailability
// error over the full error chain text.
func exclusionReason(err error) string {
	var unavailable *timeseries.DetectorUnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Reason
	}
	return err.Error()
}
