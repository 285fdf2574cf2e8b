// Package report assembles detector, consensus, and trend outputs into the
// single artifact returned to the reporting layer.
package report

import (
	"sort"
	"time"

	"github.com/hed1ad/goinsight/pkg/detectors"
	"github.com/hed1ad/goinsight/pkg/timeseries"
	"github.com/hed1ad/goinsight/pkg/trend"
)

// Components are the decomposition values of an observed row.
type Components struct {
	Trend    float64 `json:"trend"`
	Seasonal float64 `json:"seasonal"`
	Residual float64 `json:"residual"`
}

// ForecastValue is the projected estimate of a forecast row.
type ForecastValue struct {
	Point float64 `json:"point"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Row is one line of the report table: an observed point with its anomaly
// verdicts and components, or an appended forecast point. Sections absent
// from a row kind are nil.
type Row struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Observed  bool      `json:"observed"`
	Missing   bool      `json:"missing,omitempty"`

	Detectors  map[string]detectors.Result `json:"detectors,omitempty"`
	Consensus  *detectors.Consensus        `json:"consensus,omitempty"`
	Components *Components                 `json:"components,omitempty"`
	Forecast   *ForecastValue              `json:"forecast,omitempty"`
}

// Summary carries the series-level findings next to the row table.
type Summary struct {
	Trend           trend.Summary       `json:"trend"`
	Growth          trend.GrowthMetrics `json:"growth"`
	Extrema         trend.Extrema       `json:"extrema"`
	SeasonalPeriod  int                 `json:"seasonal_period"`
	Mode            trend.Mode          `json:"decomposition_mode"`
	Observations    int                 `json:"observations"`
	ForecastHorizon int                 `json:"forecast_horizon"`
}

// Report is the augmented table for one analyzed series. It is constructed
// once by Assemble and never mutated afterwards.
type Report struct {
	Metric     string                `json:"metric"`
	Dimensions map[string]string     `json:"dimensions,omitempty"`
	Detectors  []string              `json:"detectors"`
	Excluded   []detectors.Exclusion `json:"excluded,omitempty"`
	Rows       []Row                 `json:"rows"`
	Summary    Summary               `json:"summary"`
}

// Assemble merges the branch outputs onto the prepared series: a pure,
// index-aligned join (rows dropped during preparation never reappear)
// followed by the forecast rows. Output is timestamp-ascending with
// observed rows before forecast rows; nothing is recomputed here.
func Assemble(s *timeseries.Series, ens *detectors.EnsembleResult, dec *trend.Decomposition, forecast []trend.ForecastPoint, sum Summary) *Report {
	rep := &Report{
		Metric:     s.Metric,
		Dimensions: s.Dimensions,
		Detectors:  ens.Detectors,
		Excluded:   ens.Excluded,
		Rows:       make([]Row, 0, s.Len()+len(forecast)),
		Summary:    sum,
	}

	for i, p := range s.Points {
		row := Row{
			Timestamp: p.Timestamp,
			Value:     p.Value,
			Observed:  true,
			Missing:   p.Missing,
			Consensus: &ens.Consensus[i],
		}
		if len(ens.Detectors) > 0 {
			row.Detectors = make(map[string]detectors.Result, len(ens.Detectors))
			for _, name := range ens.Detectors {
				row.Detectors[name] = ens.Results[name][i]
			}
		}
		if dec != nil {
			row.Components = &Components{
				Trend:    dec.Trend[i],
				Seasonal: dec.Seasonal[i],
				Residual: dec.Residual[i],
			}
		}
		rep.Rows = append(rep.Rows, row)
	}

	for _, fp := range forecast {
		rep.Rows = append(rep.Rows, Row{
			Timestamp: fp.Timestamp,
			Forecast:  &ForecastValue{Point: fp.Point, Lower: fp.Lower, Upper: fp.Upper},
		})
	}
	return rep
}

// DimensionColumns returns the report's dimension column names in
// deterministic order.
func (r *Report) DimensionColumns() []string {
	if len(r.Dimensions) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Dimensions))
	for name := range r.Dimensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Columns returns the flat column order used by tabular encodings:
// timestamp and value, dimensions, one flag and score column per
// contributing detector, the consensus triple, the decomposition
// components, and the forecast bounds.
func (r *Report) Columns() []string {
	cols := []string{"timestamp", "value"}
	cols = append(cols, r.DimensionColumns()...)
	for _, name := range r.Detectors {
		cols = append(cols, "is_anomaly_"+name, "anomaly_score_"+name)
	}
	cols = append(cols,
		"is_anomaly_consensus", "consensus_votes", "consensus_total",
		"trend_component", "seasonal_component", "residual_component",
		"forecast_point", "forecast_lower", "forecast_upper",
	)
	return cols
}
