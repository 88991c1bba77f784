// Package uploader drives the transform-and-load pipeline: it walks parquet
// trip files, streams them through a category transformer, and loads the
// cleaned rows into a storage backend, collecting per-file and per-run
// metrics along the way.
package uploader

import (
	"context"
	"time"

	"taxiload/internal/metrics"
	"taxiload/internal/parquetio"
	"taxiload/internal/storage"
	"taxiload/internal/transform"
)

// Logger is the minimal logging interface the pipeline needs. *log.Logger
// satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// BatchSource yields raw row-group batches for a parquet file. The
// filesystem implementation is the default; tests substitute in-memory
// sources.
type BatchSource interface {
	Open(path string) (parquetio.Meta, error)
	ReadBatches(ctx context.Context, path string, fn func(*parquetio.Batch) error) error
}

// FSSource is the production BatchSource reading local parquet files.
type FSSource struct{}

func (FSSource) Open(path string) (parquetio.Meta, error) {
	return parquetio.Open(path)
}

func (FSSource) ReadBatches(ctx context.Context, path string, fn func(*parquetio.Batch) error) error {
	return parquetio.ReadBatches(ctx, path, fn)
}

// Session processes single files for one trip category. A session holds no
// per-file state; the same session is reused for every file of a run.
type Session struct {
	Repo   storage.Repository
	Trans  *transform.Transformer
	Table  string
	Source BatchSource
	Log    Logger
}

// Run processes one parquet file end to end: stream row groups, transform,
// insert, account. It always returns FileMetrics; on failure Err is set and
// the row counts hold whatever partial progress was made before the error.
//
// Edge cases:
//   - A batch whose rows are all filtered out skips the insert entirely.
//   - Context cancellation aborts between row groups and reports as an
//     ordinary file error.
func (s *Session) Run(ctx context.Context, path string) FileMetrics {
	start := time.Now()
	m := FileMetrics{File: path}

	meta, err := s.Source.Open(path)
	if err != nil {
		m.Elapsed = time.Since(start)
		m.Err = err.Error()
		s.finish(m)
		return m
	}
	m.SizeBytes = meta.SizeBytes

	s.Log.Printf("stage=file file=%s start size_bytes=%d rows=%d row_groups=%d",
		path, meta.SizeBytes, meta.TotalRows, meta.RowGroups)

	err = s.Source.ReadBatches(ctx, path, func(raw *parquetio.Batch) error {
		clean, filtered, terr := s.Trans.Transform(raw)
		if terr != nil {
			return terr
		}

		m.Batches++
		m.RowsProcessed += int64(raw.Rows)
		m.RowsFiltered += int64(filtered)

		if len(clean.Rows) == 0 {
			return nil
		}

		n, ierr := s.Repo.InsertRows(ctx, s.Table, clean.Columns, clean.Rows)
		if ierr != nil {
			return ierr
		}
		m.RowsUploaded += n
		return nil
	})

	m.Elapsed = time.Since(start)
	if err != nil {
		m.Err = err.Error()
	}
	s.finish(m)
	return m
}

// finish logs the outcome and emits per-file metrics.
func (s *Session) finish(m FileMetrics) {
	status := "success"
	if m.Failed() {
		status = "error"
		s.Log.Printf("stage=file file=%s error=%q duration=%s rows_processed=%d rows_uploaded=%d rows_filtered=%d",
			m.File, m.Err, m.Elapsed, m.RowsProcessed, m.RowsUploaded, m.RowsFiltered)
	} else {
		s.Log.Printf("stage=file file=%s ok duration=%s rows_processed=%d rows_uploaded=%d rows_filtered=%d batches=%d rows_per_sec=%.0f mb_per_sec=%.2f",
			m.File, m.Elapsed, m.RowsProcessed, m.RowsUploaded, m.RowsFiltered, m.Batches, m.RowsPerSec(), m.MBPerSec())
	}

	labels := metrics.Labels{"status": status}
	metrics.IncCounter("upload_files_total", 1, labels)
	metrics.IncCounter("upload_rows_total", float64(m.RowsProcessed), metrics.Labels{"kind": "processed"})
	metrics.IncCounter("upload_rows_total", float64(m.RowsUploaded), metrics.Labels{"kind": "uploaded"})
	metrics.IncCounter("upload_rows_total", float64(m.RowsFiltered), metrics.Labels{"kind": "filtered"})
	metrics.IncCounter("upload_batches_total", float64(m.Batches), nil)
	metrics.ObserveHistogram("upload_file_duration_seconds", m.Elapsed.Seconds(), labels)
	metrics.ObserveHistogram("upload_file_rows_per_second", m.RowsPerSec(), labels)
}
