// Package analysis wires preparation, the anomaly ensemble, and the trend
// engine into one pipeline. An Analyzer holds configuration only; every
// invocation is stateless and reentrant.
package analysis

import (
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hed1ad/goinsight/pkg/detectors"
	"github.com/hed1ad/goinsight/pkg/detectors/iforest"
	"github.com/hed1ad/goinsight/pkg/report"
	"github.com/hed1ad/goinsight/pkg/timeseries"
	"github.com/hed1ad/goinsight/pkg/trend"
)

// Analyzer runs the analysis pipeline over series. Safe for concurrent use.
type Analyzer struct {
	cfg     Config
	logger  *zap.Logger
	workers int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger attaches a logger for pipeline diagnostics. The default is a
// no-op logger; the library never logs unless asked to.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithWorkers caps how many series AnalyzeDataset processes concurrently.
// Default runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// New validates the configuration and builds an Analyzer.
func New(cfg Config, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		cfg:     cfg,
		logger:  zap.NewNop(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze prepares one raw observation group and analyzes the resulting
// series.
func (a *Analyzer) Analyze(group *timeseries.RawGroup) (*report.Report, error) {
	s, err := timeseries.Prepare(group, timeseries.PrepareConfig{
		GapFill:    a.cfg.GapFillPolicy,
		Duplicates: a.cfg.DuplicatePolicy,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("series prepared",
		zap.String("metric", s.Metric),
		zap.Int("points", s.Len()),
		zap.Int("observed", s.Observed()),
		zap.Int("missing", s.MissingCount()),
		zap.Duration("interval", s.Interval))
	return a.AnalyzeSeries(s)
}

// AnalyzeSeries runs one invocation over an already prepared series: the
// anomaly ensemble and the trend branch execute concurrently on the shared
// immutable series, then the assembler merges them. The result depends only
// on the series and the configuration.
func (a *Analyzer) AnalyzeSeries(s *timeseries.Series) (*report.Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	members, err := a.buildDetectors()
	if err != nil {
		return nil, err
	}

	period := a.cfg.SeasonalPeriod
	if period == 0 {
		period = trend.DetectPeriod(s, a.cfg.MaxPeriodLag)
		if period > 0 {
			a.logger.Debug("seasonal period detected",
				zap.String("metric", s.Metric),
				zap.Int("period", period))
		}
	}

	if floor := a.minObservations(members, period); s.Observed() < floor {
		return nil, &timeseries.InsufficientDataError{
			Operation: "analysis", Required: floor, Actual: s.Observed(),
		}
	}

	ensemble, err := detectors.NewEnsemble(members, a.cfg.ConsensusMajorityFraction,
		detectors.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	var (
		ens      *detectors.EnsembleResult
		dec      *trend.Decomposition
		forecast []trend.ForecastPoint
		summary  report.Summary
	)

	var g errgroup.Group
	g.Go(func() error {
		started := time.Now()
		var runErr error
		ens, runErr = ensemble.Run(s)
		a.logger.Debug("ensemble branch finished",
			zap.String("metric", s.Metric),
			zap.Duration("elapsed", time.Since(started)))
		return runErr
	})
	g.Go(func() error {
		started := time.Now()
		var branchErr error
		dec, forecast, summary, branchErr = a.trendBranch(s, period)
		a.logger.Debug("trend branch finished",
			zap.String("metric", s.Metric),
			zap.Duration("elapsed", time.Since(started)))
		return branchErr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return report.Assemble(s, ens, dec, forecast, summary), nil
}

// trendBranch decomposes, smooths, forecasts, and classifies. Any failure
// here fails the invocation: unlike a detector, the trend engine has no
// quorum to fall back on.
func (a *Analyzer) trendBranch(s *timeseries.Series, period int) (*trend.Decomposition, []trend.ForecastPoint, report.Summary, error) {
	var sum report.Summary

	dec, err := a.decompose(s, period)
	if err != nil {
		return nil, nil, sum, err
	}

	fit, err := trend.Smooth(s, a.cfg.smoothConfig(period))
	if err != nil {
		return nil, nil, sum, err
	}

	var forecast []trend.ForecastPoint
	if a.cfg.ForecastHorizon > 0 {
		forecast, err = fit.Forecast(a.cfg.ForecastHorizon)
		if err != nil {
			return nil, nil, sum, err
		}
	}

	sum = report.Summary{
		Trend:           trend.Classify(s, a.cfg.TrendNoiseFloor),
		Growth:          trend.Growth(s),
		Extrema:         trend.PeaksAndTroughs(s),
		SeasonalPeriod:  dec.Period,
		Mode:            dec.Mode,
		Observations:    s.Observed(),
		ForecastHorizon: len(forecast),
	}
	return dec, forecast, sum, nil
}

// decompose applies the seasonal model when a period is configured or
// detected, and otherwise falls back to the least-squares line so the
// component columns stay populated. An explicitly configured period is
// honored strictly: too little data for it is an error, not a fallback.
func (a *Analyzer) decompose(s *timeseries.Series, period int) (*trend.Decomposition, error) {
	if period >= 2 {
		return trend.Decompose(s, period, a.cfg.DecompositionMode)
	}
	return trend.DecomposeLinear(s)
}

// minObservations is the floor the mandatory work needs: the trend branch
// requirement plus the cheapest enabled detector. Detectors above the floor
// degrade into exclusions instead of failing the invocation.
func (a *Analyzer) minObservations(members []detectors.Detector, period int) int {
	floor := 2 // least-squares trend and single smoothing
	switch a.cfg.SmoothingMode {
	case trend.Double:
		floor = 3
	case trend.Triple:
		if need := 2 * period; need > floor {
			floor = need
		}
	}
	if a.cfg.SeasonalPeriod >= 2 {
		if need := 2 * a.cfg.SeasonalPeriod; need > floor {
			floor = need
		}
	}

	cheapest := 0
	for _, m := range members {
		if cheapest == 0 || m.MinObservations() < cheapest {
			cheapest = m.MinObservations()
		}
	}
	if cheapest > floor {
		floor = cheapest
	}
	return floor
}

// buildDetectors instantiates the enabled detectors in configured order;
// that order is also the vote fold and report column order.
func (a *Analyzer) buildDetectors() ([]detectors.Detector, error) {
	members := make([]detectors.Detector, 0, len(a.cfg.Detectors))
	for _, name := range a.cfg.Detectors {
		switch name {
		case detectors.NameZScore:
			d := detectors.NewZScore(a.cfg.ZThreshold)
			d.Window = a.cfg.ZWindow
			members = append(members, d)
		case detectors.NameIQR:
			d := detectors.NewIQRFence(a.cfg.IQRMultiplier)
			d.Window = a.cfg.IQRWindow
			members = append(members, d)
		case detectors.NameIsolation:
			opts := []iforest.Option{
				iforest.WithTrees(a.cfg.IsolationTrees),
				iforest.WithScoreThreshold(a.cfg.IsolationScoreThreshold),
			}
			if a.cfg.IsolationSampleSize > 0 {
				opts = append(opts, iforest.WithSampleSize(a.cfg.IsolationSampleSize))
			}
			members = append(members, iforest.New(a.cfg.IsolationSeed, opts...))
		case detectors.NameMovingAvg:
			members = append(members, detectors.NewMovingAverage(
				a.cfg.MovingAverageWindow, a.cfg.MovingAverageMultiplier))
		default:
			return nil, &timeseries.InvalidParameterError{
				Parameter: "detectors", Value: name, Reason: fmt.Sprintf("unknown detector %q", name),
			}
		}
	}
	return members, nil
}
