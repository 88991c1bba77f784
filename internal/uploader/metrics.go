package uploader

import (
	"time"

	"taxiload/internal/storage"
)

// FileMetrics records the outcome of processing one parquet file. It is
// always populated, even on failure, so partial progress stays visible in
// the run report.
type FileMetrics struct {
	File      string
	SizeBytes int64

	RowsProcessed int64 // raw rows read from the file
	RowsUploaded  int64 // rows inserted after cleaning and filtering
	RowsFiltered  int64 // rows dropped by quality bounds
	Batches       int   // row-group batches handled

	Elapsed time.Duration
	Err     string // empty on success
}

// Failed reports whether the file ended in an error.
func (m FileMetrics) Failed() bool { return m.Err != "" }

// RowsPerSec is upload throughput in rows per second, 0 if nothing elapsed.
func (m FileMetrics) RowsPerSec() float64 {
	if m.Elapsed <= 0 {
		return 0
	}
	return float64(m.RowsUploaded) / m.Elapsed.Seconds()
}

// MBPerSec is read throughput in megabytes per second, 0 if nothing elapsed.
func (m FileMetrics) MBPerSec() float64 {
	if m.Elapsed <= 0 {
		return 0
	}
	return float64(m.SizeBytes) / (1024 * 1024) / m.Elapsed.Seconds()
}

// RunSummary aggregates a whole upload run for one trip category. Row totals
// include partial counts from failed files: a file that died on its third
// batch still moved rows, and the report should say so.
type RunSummary struct {
	Category string
	Table    string

	FilesTotal  int
	FilesOK     int
	FilesFailed int

	RowsProcessed int64
	RowsUploaded  int64
	RowsFiltered  int64
	Batches       int

	Elapsed time.Duration
	Files   []FileMetrics

	// Post-load verification. TableRows and Dates are valid only when
	// VerifyWarning is empty; a verification failure never fails the run.
	TableRows     uint64
	Dates         storage.DateStats
	VerifyWarning string
}

// RowsPerSec is overall upload throughput across the whole run.
func (s RunSummary) RowsPerSec() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.RowsUploaded) / s.Elapsed.Seconds()
}

// MBPerSec is overall read throughput across the whole run.
func (s RunSummary) MBPerSec() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	var bytes int64
	for _, f := range s.Files {
		bytes += f.SizeBytes
	}
	return float64(bytes) / (1024 * 1024) / s.Elapsed.Seconds()
}

// add folds one file outcome into the running totals.
func (s *RunSummary) add(m FileMetrics) {
	s.FilesTotal++
	if m.Failed() {
		s.FilesFailed++
	} else {
		s.FilesOK++
	}
	s.RowsProcessed += m.RowsProcessed
	s.RowsUploaded += m.RowsUploaded
	s.RowsFiltered += m.RowsFiltered
	s.Batches += m.Batches
	s.Files = append(s.Files, m)
}
