package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hed1ad/goinsight/pkg/report"
)

// Writer encodes one report as a CSV file, optionally zstd-compressed. The
// column set depends on the report's contributing detectors, so a Writer
// holds exactly one report per file.
type Writer struct {
	file      *os.File
	zst       *zstd.Encoder
	csv       *csv.Writer
	precision int
	level     int
	wrote     bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompression enables zstd compression at the given level, 1 (fastest)
// through 4 (best). 0, the default, writes plain CSV.
func WithCompression(level int) WriterOption {
	return func(w *Writer) {
		w.level = level
	}
}

// WithPrecision fixes the number of significant digits written for floats.
// The default -1 uses the shortest exact representation.
func WithPrecision(p int) WriterOption {
	return func(w *Writer) {
		w.precision = p
	}
}

// NewWriter creates filename and prepares the encoding chain.
func NewWriter(filename string, opts ...WriterOption) (*Writer, error) {
	w := &Writer{precision: -1}
	for _, opt := range opts {
		opt(w)
	}
	if w.level < 0 || w.level > 4 {
		return nil, fmt.Errorf("compression level %d out of range [0, 4]", w.level)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	w.file = file

	if w.level > 0 {
		enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(EncoderLevel(w.level)))
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create encoder: %w", err)
		}
		w.zst = enc
		w.csv = csv.NewWriter(enc)
	} else {
		w.csv = csv.NewWriter(file)
	}
	return w, nil
}

// EncoderLevel maps the writer's 1-4 compression scale onto the zstd
// encoder speeds.
func EncoderLevel(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	case 4:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// Write encodes the report: header from the report's column contract, then
// one line per row. Cells outside a row's kind stay empty — component cells
// on forecast rows, forecast cells on observed rows, the value cell on
// missing rows.
func (w *Writer) Write(rep *report.Report) error {
	if w.wrote {
		return fmt.Errorf("writer already holds a report")
	}
	w.wrote = true

	if err := w.csv.Write(rep.Columns()); err != nil {
		return err
	}

	dims := rep.DimensionColumns()
	for _, row := range rep.Rows {
		if err := w.csv.Write(w.rowCells(rep, dims, row)); err != nil {
			return err
		}
	}
	w.csv.Flush()
	return w.csv.Error()
}

func (w *Writer) rowCells(rep *report.Report, dims []string, row report.Row) []string {
	cells := make([]string, 0, 2+len(dims)+2*len(rep.Detectors)+9)

	cells = append(cells, row.Timestamp.Format(time.RFC3339))
	if row.Observed && !row.Missing {
		cells = append(cells, w.formatFloat(row.Value))
	} else {
		cells = append(cells, "")
	}
	for _, d := range dims {
		cells = append(cells, rep.Dimensions[d])
	}

	for _, name := range rep.Detectors {
		if res, ok := row.Detectors[name]; ok {
			cells = append(cells, strconv.FormatBool(res.IsOutlier), w.formatFloat(res.Score))
		} else {
			cells = append(cells, "", "")
		}
	}

	if row.Consensus != nil {
		cells = append(cells,
			strconv.FormatBool(row.Consensus.IsAnomaly),
			strconv.Itoa(row.Consensus.Votes),
			strconv.Itoa(row.Consensus.Total))
	} else {
		cells = append(cells, "", "", "")
	}

	if row.Components != nil {
		cells = append(cells,
			w.formatFloat(row.Components.Trend),
			w.formatFloat(row.Components.Seasonal),
			w.formatFloat(row.Components.Residual))
	} else {
		cells = append(cells, "", "", "")
	}

	if row.Forecast != nil {
		cells = append(cells,
			w.formatFloat(row.Forecast.Point),
			w.formatFloat(row.Forecast.Lower),
			w.formatFloat(row.Forecast.Upper))
	} else {
		cells = append(cells, "", "", "")
	}
	return cells
}

func (w *Writer) formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', w.precision, 64)
}

// Close flushes the CSV buffer, finishes the compression frame, and closes
// the file.
func (w *Writer) Close() error {
	w.csv.Flush()
	err := w.csv.Error()
	if w.zst != nil {
		if cerr := w.zst.Close(); err == nil {
			err = cerr
		}
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
