package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{
			name:    "valid",
			schema:  Schema{TimeColumn: "date", Metrics: []string{"revenue"}},
			wantErr: false,
		},
		{
			name:    "no time column",
			schema:  Schema{Metrics: []string{"revenue"}},
			wantErr: true,
		},
		{
			name:    "no metrics",
			schema:  Schema{TimeColumn: "date"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr {
				var schemaErr *SchemaError
				require.ErrorAs(t, err, &schemaErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseTable(t *testing.T) {
	header := []string{"date", "region", "revenue", "orders"}
	schema := Schema{
		TimeColumn: "date",
		Metrics:    []string{"revenue", "orders"},
		Dimensions: []string{"region"},
	}

	t.Run("typed records with dimensions", func(t *testing.T) {
		rows := [][]string{
			{"2024-01-01", "emea", "100.5", "12"},
			{"2024-01-02", "emea", "101", "15"},
			{"2024-01-01", "apac", "55", "4"},
		}

		ds, err := ParseTable(header, rows, schema)
		require.NoError(t, err)
		require.Len(t, ds.Records, 3)

		first := ds.Records[0]
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.Timestamp)
		assert.Equal(t, map[string]string{"region": "emea"}, first.Dimensions)
		assert.Equal(t, 100.5, first.Values["revenue"])
		assert.Equal(t, 12.0, first.Values["orders"])
	})

	t.Run("empty metric cell is absent, not an error", func(t *testing.T) {
		rows := [][]string{
			{"2024-01-01", "emea", "100", ""},
		}

		ds, err := ParseTable(header, rows, schema)
		require.NoError(t, err)

		_, ok := ds.Records[0].Values["orders"]
		assert.False(t, ok)
		assert.Equal(t, 100.0, ds.Records[0].Values["revenue"])
	})

	t.Run("missing column names the column", func(t *testing.T) {
		_, err := ParseTable([]string{"date", "revenue"}, nil, schema)

		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "orders", schemaErr.Column)
	})

	t.Run("bad timestamp names the time column and row", func(t *testing.T) {
		rows := [][]string{
			{"2024-01-01", "emea", "100", "1"},
			{"not-a-date", "emea", "101", "2"},
		}

		_, err := ParseTable(header, rows, schema)

		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "date", schemaErr.Column)
		assert.Contains(t, schemaErr.Reason, "row 2")
	})

	t.Run("non-numeric metric cell names the metric", func(t *testing.T) {
		rows := [][]string{
			{"2024-01-01", "emea", "n/a", "1"},
		}

		_, err := ParseTable(header, rows, schema)

		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "revenue", schemaErr.Column)
	})

	t.Run("fixed layout rejects other formats", func(t *testing.T) {
		strict := schema
		strict.TimeLayout = "2006-01-02"
		rows := [][]string{
			{"2024-01-01T10:00:00Z", "emea", "100", "1"},
		}

		_, err := ParseTable(header, rows, strict)

		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
	})

	t.Run("common layouts are auto-detected", func(t *testing.T) {
		rows := [][]string{
			{"2024-01-01T10:30:00Z", "emea", "1", "1"},
			{"2024-01-02T10:30:00", "emea", "2", "2"},
			{"2024-01-03 10:30:00", "emea", "3", "3"},
			{"2024-01-04", "emea", "4", "4"},
		}

		ds, err := ParseTable(header, rows, schema)
		require.NoError(t, err)
		assert.Len(t, ds.Records, 4)
	})
}

func TestGroups(t *testing.T) {
	ds := &Dataset{
		Schema: Schema{
			TimeColumn: "date",
			Metrics:    []string{"revenue"},
			Dimensions: []string{"region"},
		},
		Records: []Record{
			{Timestamp: day(1), Dimensions: map[string]string{"region": "emea"}, Values: map[string]float64{"revenue": 10}},
			{Timestamp: day(1), Dimensions: map[string]string{"region": "apac"}, Values: map[string]float64{"revenue": 20}},
			{Timestamp: day(2), Dimensions: map[string]string{"region": "emea"}, Values: map[string]float64{"revenue": 11}},
			{Timestamp: day(2), Dimensions: map[string]string{"region": "apac"}, Values: map[string]float64{}},
		},
	}

	groups := ds.Groups("revenue")
	require.Len(t, groups, 2)

	// Sorted by dimension key: apac before emea.
	assert.Equal(t, "apac", groups[0].Dimensions["region"])
	assert.Equal(t, "emea", groups[1].Dimensions["region"])

	// The record without a revenue value is skipped.
	assert.Len(t, groups[0].Points, 1)
	assert.Len(t, groups[1].Points, 2)
}

func TestSeriesValidate(t *testing.T) {
	tests := []struct {
		name    string
		points  []Point
		wantErr error
	}{
		{
			name:   "ascending",
			points: []Point{{Timestamp: day(1)}, {Timestamp: day(2)}},
		},
		{
			name:    "duplicate timestamp",
			points:  []Point{{Timestamp: day(1)}, {Timestamp: day(1)}},
			wantErr: &DuplicateTimestampError{},
		},
		{
			name:    "descending",
			points:  []Point{{Timestamp: day(2)}, {Timestamp: day(1)}},
			wantErr: &SchemaError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Series{Metric: "m", Points: tt.points}
			err := s.Validate()

			switch tt.wantErr.(type) {
			case nil:
				assert.NoError(t, err)
			case *DuplicateTimestampError:
				var dup *DuplicateTimestampError
				assert.ErrorAs(t, err, &dup)
			case *SchemaError:
				var schemaErr *SchemaError
				assert.ErrorAs(t, err, &schemaErr)
			}
		})
	}
}

func TestSeriesValues(t *testing.T) {
	s := &Series{Points: []Point{
		{Timestamp: day(1), Value: 1},
		{Timestamp: day(2), Missing: true},
		{Timestamp: day(3), Value: 3},
	}}

	values := s.Values()
	require.Len(t, values, 3)
	assert.Equal(t, 1.0, values[0])
	assert.True(t, values[1] != values[1], "missing slot should be NaN")
	assert.Equal(t, 3.0, values[2])

	assert.Equal(t, []float64{1, 3}, s.ObservedValues())
	assert.Equal(t, 2, s.Observed())
	assert.Equal(t, 1, s.MissingCount())
	assert.True(t, s.HasMissing())
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}
