// Package io defines the boundary between file formats and the analytical
// core: readers produce typed datasets, writers encode finished reports.
package io

import (
	"github.com/hed1ad/goinsight/pkg/report"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// DatasetReader is the interface for loading tabular input.
type DatasetReader interface {
	// Read returns the complete dataset.
	Read() (*timeseries.Dataset, error)

	// Close releases resources.
	Close() error
}

// ReportWriter is the interface for encoding analysis reports.
type ReportWriter interface {
	// Write encodes a single report.
	Write(rep *report.Report) error

	// Close flushes buffered output and releases resources.
	Close() error
}
