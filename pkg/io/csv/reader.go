// Package csv adapts CSV files to the core's dataset and report structures.
package csv

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// Reader reads one CSV file into a typed dataset. The first row must be the
// header; the schema names the columns to use, extra columns are ignored.
type Reader struct {
	file    *os.File
	reader  *csv.Reader
	schema  timeseries.Schema
	headers []string
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithComma sets the field separator. Default ','.
func WithComma(c rune) ReaderOption {
	return func(r *Reader) {
		r.reader.Comma = c
	}
}

// NewReader opens filename and consumes its header row.
func NewReader(filename string, schema timeseries.Schema, opts ...ReaderOption) (*Reader, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	r := &Reader{
		file:   file,
		reader: csv.NewReader(file),
		schema: schema,
	}
	// Ragged rows are tolerated here; schema parsing decides what a row
	// must contain.
	r.reader.FieldsPerRecord = -1

	for _, opt := range opts {
		opt(r)
	}

	headers, err := r.reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}
	r.headers = headers

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Read consumes the remaining rows and parses them against the schema.
func (r *Reader) Read() (*timeseries.Dataset, error) {
	rows, err := r.reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return timeseries.ParseTable(r.headers, rows, r.schema)
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
