package uploader

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteReport renders a human-readable run report. Large row counts are
// printed with thousands separators; nobody eyeballs 48211837 correctly.
func WriteReport(w io.Writer, s RunSummary) {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "\n==== upload report: %s -> %s ====\n", s.Category, s.Table)
	p.Fprintf(w, "files:          %d total, %d ok, %d failed\n", s.FilesTotal, s.FilesOK, s.FilesFailed)
	p.Fprintf(w, "rows processed: %d\n", s.RowsProcessed)
	p.Fprintf(w, "rows uploaded:  %d\n", s.RowsUploaded)
	p.Fprintf(w, "rows filtered:  %d\n", s.RowsFiltered)
	p.Fprintf(w, "batches:        %d\n", s.Batches)
	p.Fprintf(w, "elapsed:        %s\n", s.Elapsed)
	p.Fprintf(w, "throughput:     %.0f rows/s, %.2f MB/s\n", s.RowsPerSec(), s.MBPerSec())

	for _, f := range s.Files {
		if f.Failed() {
			p.Fprintf(w, "  FAIL %s: %s (processed %d, uploaded %d)\n",
				f.File, f.Err, f.RowsProcessed, f.RowsUploaded)
			continue
		}
		p.Fprintf(w, "  ok   %s: uploaded %d / processed %d (filtered %d) in %s, %.0f rows/s, %.2f MB/s\n",
			f.File, f.RowsUploaded, f.RowsProcessed, f.RowsFiltered, f.Elapsed, f.RowsPerSec(), f.MBPerSec())
	}

	if s.VerifyWarning != "" {
		p.Fprintf(w, "verify:         WARNING: %s\n", s.VerifyWarning)
		return
	}
	p.Fprintf(w, "verify:         table has %d rows, dates %s .. %s (%d distinct days)\n",
		s.TableRows,
		s.Dates.MinDate.Format("2006-01-02"), s.Dates.MaxDate.Format("2006-01-02"),
		s.Dates.DistinctDays)
}
