package analysis

import (
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hed1ad/goinsight/pkg/report"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// SeriesResult pairs one (metric, dimensions) group with its report or its
// failure. Groups are independent; one failing never affects the others.
type SeriesResult struct {
	Metric     string            `json:"metric"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Report     *report.Report    `json:"report,omitempty"`
	Err        error             `json:"-"`
}

// AnalyzeDataset fans the dataset's series groups across a bounded worker
// pool and returns one result per group. Result order is deterministic:
// schema metric order, then dimension key order within a metric, regardless
// of scheduling.
func (a *Analyzer) AnalyzeDataset(ds *timeseries.Dataset) []SeriesResult {
	var groups []*timeseries.RawGroup
	for _, metric := range ds.Schema.Metrics {
		groups = append(groups, ds.Groups(metric)...)
	}

	results := make([]SeriesResult, len(groups))
	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, group := range groups {
		i, group := i, group // per-iteration copies for the closure (pre-1.22 loop semantics)
		g.Go(func() error {
			rep, err := a.Analyze(group)
			results[i] = SeriesResult{
				Metric:     group.Metric,
				Dimensions: group.Dimensions,
				Report:     rep,
				Err:        err,
			}
			if err != nil {
				a.logger.Warn("series analysis failed",
					zap.String("metric", group.Metric),
					zap.Any("dimensions", group.Dimensions),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait() // workers report through their result slot
	return results
}
