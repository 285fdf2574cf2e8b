package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/goinsight/pkg/analysis"
	csvio "github.com/hed1ad/goinsight/pkg/io/csv"
	"github.com/hed1ad/goinsight/pkg/report"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// analyzeFlags holds the I/O flags of the analyze command. The tuning
// surface is bound through viper instead so file, environment, and flag
// sources share one precedence chain.
type analyzeFlags struct {
	input      string
	timeColumn string
	timeLayout string
	metrics    []string
	dimensions []string
	delimiter  string
	output     string
	format     string
	compress   int
	workers    int
}

// configFlagKeys maps analyze flag names onto config keys.
var configFlagKeys = map[string]string{
	"z-threshold":                 "z_threshold",
	"z-window":                    "z_window",
	"iqr-multiplier":              "iqr_multiplier",
	"iqr-window":                  "iqr_window",
	"isolation-seed":              "isolation_seed",
	"isolation-score-threshold":   "isolation_score_threshold",
	"isolation-trees":             "isolation_trees",
	"isolation-sample-size":       "isolation_sample_size",
	"moving-average-window":       "moving_average_window",
	"moving-average-multiplier":   "moving_average_multiplier",
	"detectors":                   "detectors",
	"consensus-majority-fraction": "consensus_majority_fraction",
	"seasonal-period":             "seasonal_period",
	"max-period-lag":              "max_period_lag",
	"decomposition-mode":          "decomposition_mode",
	"smoothing-mode":              "smoothing_mode",
	"alpha":                       "alpha",
	"beta":                        "beta",
	"gamma":                       "gamma",
	"forecast-horizon":            "forecast_horizon",
	"gap-fill-policy":             "gap_fill_policy",
	"duplicate-policy":            "duplicate_policy",
	"trend-noise-floor":           "trend_noise_floor",
}

func newAnalyzeCommand(a *app) *cobra.Command {
	f := &analyzeFlags{}
	defaults := analysis.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze metric series from a CSV file",
		Example: "  goinsight analyze --input metrics.csv --metric revenue\n" +
			"  goinsight analyze -i metrics.csv --time-column date -m revenue -d region \\\n" +
			"      --config goinsight.yaml -o out.csv --compress 2",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(a, f, cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "input CSV file (required)")
	flags.StringVar(&f.timeColumn, "time-column", "timestamp", "name of the timestamp column")
	flags.StringVar(&f.timeLayout, "time-layout", "", "Go time layout of the timestamp column (default: auto-detect)")
	flags.StringSliceVarP(&f.metrics, "metric", "m", nil, "metric column to analyze (repeatable, required)")
	flags.StringSliceVarP(&f.dimensions, "dimension", "d", nil, "dimension column to group by (repeatable)")
	flags.StringVar(&f.delimiter, "delimiter", ",", "input field delimiter")
	flags.StringVarP(&f.output, "output", "o", "", "output path; multi-series runs insert the series name before the extension")
	flags.StringVar(&f.format, "format", "csv", "output format: csv or json")
	flags.IntVar(&f.compress, "compress", 0, "zstd compression level 1 (fastest) to 4 (best); 0 disables")
	flags.IntVar(&f.workers, "workers", 0, "concurrent series analyses (default: number of CPUs)")

	flags.Float64("z-threshold", defaults.ZThreshold, "z-score flag threshold")
	flags.Int("z-window", defaults.ZWindow, "z-score trailing window (0 = whole series)")
	flags.Float64("iqr-multiplier", defaults.IQRMultiplier, "IQR fence multiplier")
	flags.Int("iqr-window", defaults.IQRWindow, "IQR trailing window (0 = whole series)")
	flags.Int64("isolation-seed", defaults.IsolationSeed, "isolation forest random seed")
	flags.Float64("isolation-score-threshold", defaults.IsolationScoreThreshold, "isolation forest flag threshold")
	flags.Int("isolation-trees", defaults.IsolationTrees, "isolation forest tree count")
	flags.Int("isolation-sample-size", defaults.IsolationSampleSize, "isolation forest subsample size (0 = min(256, n))")
	flags.Int("moving-average-window", defaults.MovingAverageWindow, "moving-average window")
	flags.Float64("moving-average-multiplier", defaults.MovingAverageMultiplier, "moving-average deviation multiplier")
	flags.StringSlice("detectors", defaults.Detectors, "enabled detectors in vote order")
	flags.Float64("consensus-majority-fraction", defaults.ConsensusMajorityFraction, "fraction of detectors that must agree")
	flags.Int("seasonal-period", defaults.SeasonalPeriod, "seasonal period in grid steps (0 = auto-detect)")
	flags.Int("max-period-lag", defaults.MaxPeriodLag, "largest lag scanned during period detection (0 = half the series)")
	flags.String("decomposition-mode", string(defaults.DecompositionMode), "decomposition mode: additive or multiplicative")
	flags.String("smoothing-mode", string(defaults.SmoothingMode), "smoothing mode: single, double, or triple")
	flags.Float64("alpha", defaults.Alpha, "level smoothing coefficient")
	flags.Float64("beta", defaults.Beta, "trend smoothing coefficient")
	flags.Float64("gamma", defaults.Gamma, "seasonal smoothing coefficient")
	flags.Int("forecast-horizon", defaults.ForecastHorizon, "forecast steps (0 disables forecasting)")
	flags.String("gap-fill-policy", string(defaults.GapFillPolicy), "gap fill policy: none, forward_fill, or interpolate")
	flags.String("duplicate-policy", string(defaults.DuplicatePolicy), "duplicate timestamp policy: last_write_wins or error")
	flags.Float64("trend-noise-floor", defaults.TrendNoiseFloor, "slope magnitude below which the trend is flat")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("metric")
	return cmd
}

func runAnalyze(a *app, f *analyzeFlags, cmd *cobra.Command) error {
	cfg, err := loadConfig(a, cmd)
	if err != nil {
		return err
	}

	if f.format != "csv" && f.format != "json" {
		return fmt.Errorf("unknown format %q (want csv or json)", f.format)
	}
	if f.format == "csv" && f.output == "" {
		return fmt.Errorf("--format csv requires --output")
	}
	if f.compress < 0 || f.compress > 4 {
		return fmt.Errorf("--compress %d out of range [0, 4]", f.compress)
	}
	if f.compress > 0 && f.output == "" {
		return fmt.Errorf("--compress requires --output")
	}
	delim, err := delimiterRune(f.delimiter)
	if err != nil {
		return err
	}

	logger := a.logger.With(zap.String("run_id", uuid.New().String()))

	schema := timeseries.Schema{
		TimeColumn: f.timeColumn,
		TimeLayout: f.timeLayout,
		Metrics:    f.metrics,
		Dimensions: f.dimensions,
	}
	reader, err := csvio.NewReader(f.input, schema, csvio.WithComma(delim))
	if err != nil {
		return err
	}
	ds, err := reader.Read()
	if cerr := reader.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	analyzer, err := analysis.New(cfg,
		analysis.WithLogger(logger),
		analysis.WithWorkers(f.workers))
	if err != nil {
		return err
	}

	started := time.Now()
	logger.Info("analysis started",
		zap.String("input", f.input),
		zap.Strings("metrics", f.metrics),
		zap.Int("records", len(ds.Records)))

	results := analyzer.AnalyzeDataset(ds)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}

	// Partial results are still written when some series failed.
	if err := writeResults(f, results); err != nil {
		return err
	}

	logger.Info("analysis finished",
		zap.Int("series", len(results)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(started)))

	if failed > 0 {
		return fmt.Errorf("%d of %d series failed", failed, len(results))
	}
	return nil
}

// loadConfig binds the tuning flags into viper and resolves the final
// configuration: changed flags beat environment variables, which beat the
// config file, which beats the defaults.
func loadConfig(a *app, cmd *cobra.Command) (analysis.Config, error) {
	cfg := analysis.DefaultConfig()
	for flagName, key := range configFlagKeys {
		if err := a.viper.BindPFlag(key, cmd.Flags().Lookup(flagName)); err != nil {
			return cfg, fmt.Errorf("bind --%s: %w", flagName, err)
		}
	}
	if err := a.viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func writeResults(f *analyzeFlags, results []analysis.SeriesResult) error {
	if f.output == "" {
		return writeJSONStdout(results)
	}

	multi := len(results) > 1
	for _, res := range results {
		if res.Err != nil || res.Report == nil {
			continue
		}
		path := outputPath(f.output, f.format, f.compress, multi, res)
		var err error
		if f.format == "csv" {
			err = writeCSV(path, res.Report, f.compress)
		} else {
			err = writeJSONFile(path, res.Report, f.compress)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// seriesEnvelope is the stdout JSON shape: one element per series, carrying
// either the report or the failure.
type seriesEnvelope struct {
	Metric     string            `json:"metric"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Error      string            `json:"error,omitempty"`
	Report     *report.Report    `json:"report,omitempty"`
}

func writeJSONStdout(results []analysis.SeriesResult) error {
	envelopes := make([]seriesEnvelope, len(results))
	for i, res := range results {
		envelopes[i] = seriesEnvelope{
			Metric:     res.Metric,
			Dimensions: res.Dimensions,
			Report:     res.Report,
		}
		if res.Err != nil {
			envelopes[i].Error = res.Err.Error()
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(envelopes)
}

func writeCSV(path string, rep *report.Report, level int) error {
	var opts []csvio.WriterOption
	if level > 0 {
		opts = append(opts, csvio.WithCompression(level))
	}
	w, err := csvio.NewWriter(path, opts...)
	if err != nil {
		return err
	}
	if err := w.Write(rep); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func writeJSONFile(path string, rep *report.Report, level int) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if level == 0 {
		return os.WriteFile(path, data, 0o644)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(csvio.EncoderLevel(level)))
	if err != nil {
		file.Close()
		return err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		file.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// outputPath derives the per-series file name: the configured output path,
// with the series slug inserted before the extension on multi-series runs
// and a .zst suffix when compression is on.
func outputPath(base, format string, compress int, multi bool, res analysis.SeriesResult) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = "." + format
	}
	if multi {
		stem += "_" + seriesSlug(res)
	}
	path := stem + ext
	if compress > 0 {
		path += ".zst"
	}
	return path
}

// seriesSlug builds a filesystem-safe name for one series.
func seriesSlug(res analysis.SeriesResult) string {
	parts := []string{res.Metric}
	names := make([]string, 0, len(res.Dimensions))
	for name := range res.Dimensions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+"-"+res.Dimensions[name])
	}
	return sanitize(strings.Join(parts, "_"))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

func delimiterRune(s string) (rune, error) {
	if s == "\\t" || s == "tab" {
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return runes[0], nil
}
