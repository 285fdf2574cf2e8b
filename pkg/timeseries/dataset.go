package timeseries

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Schema declares the columns of a raw tabular input: one timestamp column,
// one or more numeric metric columns, and optional dimension columns used
// to split the table into per-group series.
type Schema struct {
	TimeColumn string   `json:"time_column" mapstructure:"time_column"`
	TimeLayout string   `json:"time_layout,omitempty" mapstructure:"time_layout"`
	Metrics    []string `json:"metrics" mapstructure:"metrics"`
	Dimensions []string `json:"dimensions,omitempty" mapstructure:"dimensions"`
}

// Validate checks that the schema names the required columns.
func (sc Schema) Validate() error {
	if sc.TimeColumn == "" {
		return &SchemaError{Column: "time_column", Reason: "no timestamp column declared"}
	}
	if len(sc.Metrics) == 0 {
		return &SchemaError{Column: "metrics", Reason: "no metric column declared"}
	}
	return nil
}

// Record is one validated row of the input table. Values holds the metric
// cells present on the row; metrics with an empty cell are simply absent
// and surface later as grid gaps.
type Record struct {
	Timestamp  time.Time         `json:"timestamp"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Values     map[string]float64 `json:"values"`
}

// Dataset is the in-memory tabular structure the reporting layer hands to
// the core. Records keep their arrival order; grouping and ordering happen
// during preparation.
type Dataset struct {
	Schema  Schema   `json:"schema"`
	Records []Record `json:"records"`
}

// RawGroup is the unprepared observation list for one (metric, dimension
// combination), in arrival order.
type RawGroup struct {
	Metric     string
	Dimensions map[string]string
	Points     []Point
}

// timeLayouts are tried in order when the schema does not fix a layout.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTable validates a raw header+rows table against the schema and
// returns the typed dataset. It fails with a *SchemaError naming the
// offending column on the first missing column, unparseable timestamp, or
// non-numeric metric cell. Empty metric cells are treated as absent values,
// not errors.
func ParseTable(header []string, rows [][]string, schema Schema) (*Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	columnIndex := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, &SchemaError{Column: name, Reason: "column not found"}
		}
		return i, nil
	}

	timeIdx, err := columnIndex(schema.TimeColumn)
	if err != nil {
		return nil, err
	}
	metricIdx := make(map[string]int, len(schema.Metrics))
	for _, m := range schema.Metrics {
		if metricIdx[m], err = columnIndex(m); err != nil {
			return nil, err
		}
	}
	dimIdx := make(map[string]int, len(schema.Dimensions))
	for _, d := range schema.Dimensions {
		if dimIdx[d], err = columnIndex(d); err != nil {
			return nil, err
		}
	}

	ds := &Dataset{Schema: schema, Records: make([]Record, 0, len(rows))}
	for rowNum, row := range rows {
		if timeIdx >= len(row) {
			return nil, &SchemaError{
				Column: schema.TimeColumn,
				Reason: fmt.Sprintf("row %d has no timestamp cell", rowNum+1),
			}
		}
		ts, err := parseTime(strings.TrimSpace(row[timeIdx]), schema.TimeLayout)
		if err != nil {
			return nil, &SchemaError{
				Column: schema.TimeColumn,
				Reason: fmt.Sprintf("row %d: %v", rowNum+1, err),
			}
		}

		rec := Record{Timestamp: ts, Values: make(map[string]float64, len(schema.Metrics))}
		for _, m := range schema.Metrics {
			i := metricIdx[m]
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, &SchemaError{
					Column: m,
					Reason: fmt.Sprintf("row %d: non-numeric value %q", rowNum+1, cell),
				}
			}
			rec.Values[m] = v
		}

		if len(schema.Dimensions) > 0 {
			rec.Dimensions = make(map[string]string, len(schema.Dimensions))
			for _, d := range schema.Dimensions {
				if i := dimIdx[d]; i < len(row) {
					rec.Dimensions[d] = strings.TrimSpace(row[i])
				}
			}
		}

		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

// parseTime parses a timestamp cell with the fixed layout when given,
// otherwise by trying the common layouts in order.
func parseTime(cell, layout string) (time.Time, error) {
	if cell == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if layout != "" {
		ts, err := time.Parse(layout, cell)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q does not match layout %q", cell, layout)
		}
		return ts, nil
	}
	for _, l := range timeLayouts {
		if ts, err := time.Parse(l, cell); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", cell)
}

// Groups splits the dataset into one raw group per dimension combination
// for the given metric, in a deterministic order (sorted by dimension key).
// Records without a value for the metric are skipped.
func (ds *Dataset) Groups(metric string) []*RawGroup {
	byKey := make(map[string]*RawGroup)
	var keys []string

	for _, rec := range ds.Records {
		v, ok := rec.Values[metric]
		if !ok {
			continue
		}
		key := dimensionKey(rec.Dimensions)
		grp, ok := byKey[key]
		if !ok {
			grp = &RawGroup{Metric: metric, Dimensions: copyDims(rec.Dimensions)}
			byKey[key] = grp
			keys = append(keys, key)
		}
		grp.Points = append(grp.Points, Point{Timestamp: rec.Timestamp, Value: v})
	}

	sort.Strings(keys)
	out := make([]*RawGroup, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

// dimensionKey builds the canonical identity of a dimension combination.
func dimensionKey(dims map[string]string) string {
	if len(dims) == 0 {
		return ""
	}
	names := make([]string, 0, len(dims))
	for name := range dims {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(dims[name])
	}
	return b.String()
}

func copyDims(dims map[string]string) map[string]string {
	if len(dims) == 0 {
		return nil
	}
	out := make(map[string]string, len(dims))
	for k, v := range dims {
		out[k] = v
	}
	return out
}
