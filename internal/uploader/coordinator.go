package uploader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"taxiload/internal/storage"
	"taxiload/internal/transform"
)

// ErrNoFiles is returned when the data directory holds no file matching the
// category's glob. It is checked before any storage access: an empty input
// set fails fast without touching the destination.
var ErrNoFiles = errors.New("no input files")

// ErrTableMissing is returned when the destination table does not exist or
// is not queryable. The run aborts before any file is processed.
var ErrTableMissing = errors.New("destination table missing")

// Coordinator runs a full upload for one trip category: enumerate files,
// verify the destination, process each file sequentially, verify the load.
type Coordinator struct {
	Repo   storage.Repository
	Schema transform.Schema
	Source BatchSource
	Log    Logger
	RunID  string
}

// Run executes the whole upload and returns its summary.
//
// Order of operations:
//  1. Enumerate matching files (sorted). None -> ErrNoFiles.
//  2. Probe the destination table. Failure -> ErrTableMissing, zero files
//     touched.
//  3. Process files one at a time, oldest filename first. A file failure is
//     recorded and the run continues with the next file.
//  4. Verify the load with aggregate queries. A verification failure only
//     sets VerifyWarning; the summary and error reflect the upload itself.
//
// Errors:
//   - ErrNoFiles, ErrTableMissing as above.
//   - Otherwise nil: per-file failures live in the summary, not the error.
func (c *Coordinator) Run(ctx context.Context, dataDir string) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{
		Category: c.Schema.Category,
		Table:    c.Schema.Table,
	}

	pattern := filepath.Join(dataDir, c.Schema.Glob)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return summary, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(files) == 0 {
		return summary, fmt.Errorf("%w: %s", ErrNoFiles, pattern)
	}
	sort.Strings(files)

	c.Log.Printf("stage=run run_id=%s category=%s table=%s start files=%d",
		c.RunID, c.Schema.Category, c.Schema.Table, len(files))

	if err := c.Repo.CheckTable(ctx, c.Schema.Table); err != nil {
		return summary, fmt.Errorf("%w: %s: %v", ErrTableMissing, c.Schema.Table, err)
	}

	session := &Session{
		Repo:   c.Repo,
		Trans:  transform.New(c.Schema),
		Table:  c.Schema.Table,
		Source: c.Source,
		Log:    c.Log,
	}

	for _, f := range files {
		summary.add(session.Run(ctx, f))
		if ctx.Err() != nil {
			break
		}
	}
	summary.Elapsed = time.Since(start)

	c.verify(ctx, &summary)

	c.Log.Printf("stage=run run_id=%s category=%s done duration=%s files_ok=%d files_failed=%d rows_uploaded=%d rows_filtered=%d",
		c.RunID, c.Schema.Category, summary.Elapsed, summary.FilesOK, summary.FilesFailed, summary.RowsUploaded, summary.RowsFiltered)

	return summary, nil
}

// verify runs the post-load aggregate checks. Failures degrade to a warning:
// rows already uploaded are not made less uploaded by a broken SELECT.
func (c *Coordinator) verify(ctx context.Context, s *RunSummary) {
	n, err := c.Repo.CountRows(ctx, c.Schema.Table)
	if err != nil {
		s.VerifyWarning = fmt.Sprintf("count rows: %v", err)
		c.Log.Printf("stage=verify table=%s warning=%q", c.Schema.Table, s.VerifyWarning)
		return
	}
	s.TableRows = n

	stats, err := c.Repo.DateStats(ctx, c.Schema.Table, transform.ColPickupDate)
	if err != nil {
		s.VerifyWarning = fmt.Sprintf("date stats: %v", err)
		c.Log.Printf("stage=verify table=%s warning=%q", c.Schema.Table, s.VerifyWarning)
		return
	}
	s.Dates = stats

	c.Log.Printf("stage=verify table=%s ok total_rows=%d min_date=%s max_date=%s distinct_days=%d",
		c.Schema.Table, s.TableRows,
		stats.MinDate.Format("2006-01-02"), stats.MaxDate.Format("2006-01-02"), stats.DistinctDays)
}
