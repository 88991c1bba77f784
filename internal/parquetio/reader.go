// Package parquetio reads parquet trip files one row group at a time.
//
// The reader is deliberately sequential: a row group is fully materialized,
// handed to the caller, and discarded before the next one is touched. Peak
// memory is therefore bounded by the largest row group in the file plus the
// destination client's own buffering.
package parquetio

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
)

// ErrSourceRead marks a file that is unreadable or structurally corrupt.
// Callers treat it as fatal for the current file, not for the run.
var ErrSourceRead = errors.New("parquet source read")

// Meta describes a parquet file from its footer, before any row group is
// materialized.
type Meta struct {
	Path      string
	SizeBytes int64
	TotalRows int64
	RowGroups int
	Columns   []string
}

// Batch is the fully materialized contents of one row group.
//
// Column names are taken verbatim from the file footer, so inconsistent
// casing across source-file generations ("Airport_fee" vs "airport_fee")
// survives into the batch; reconciling them is the transformer's job.
// A nil entry in a value slice is a source null.
type Batch struct {
	Columns map[string][]any
	Rows    int
}

// Open reads the footer and returns file metadata.
//
// Errors:
//   - Wraps ErrSourceRead if the file cannot be opened or the footer cannot
//     be parsed.
func Open(path string) (Meta, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, 1)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}
	defer pr.ReadStop()

	leaves, err := leafElements(pr.Footer)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}

	cols := make([]string, 0, len(leaves))
	for _, el := range leaves {
		cols = append(cols, el.Name)
	}

	return Meta{
		Path:      path,
		SizeBytes: st.Size(),
		TotalRows: pr.Footer.NumRows,
		RowGroups: len(pr.Footer.RowGroups),
		Columns:   cols,
	}, nil
}

// ReadBatches streams the file in row-group order, invoking fn once per row
// group with a fully materialized Batch. The Batch is owned by fn and must
// not be retained past the call.
//
// The stream is single-pass; re-open the file to re-read it. Any error from
// fn aborts the stream and is returned as-is. Reader-side failures are
// wrapped in ErrSourceRead.
func ReadBatches(ctx context.Context, path string, fn func(*Batch) error) error {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, 1)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}
	defer pr.ReadStop()

	leaves, err := leafElements(pr.Footer)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}

	for gi, rg := range pr.Footer.RowGroups {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := int(rg.NumRows)
		batch := &Batch{
			Columns: make(map[string][]any, len(leaves)),
			Rows:    n,
		}

		for ci, el := range leaves {
			vals, _, _, err := pr.ReadColumnByIndex(int64(ci), int64(n))
			if err != nil {
				return fmt.Errorf("%w: %s: row group %d column %s: %v", ErrSourceRead, path, gi, el.Name, err)
			}
			if len(vals) != n {
				return fmt.Errorf("%w: %s: row group %d column %s: got %d values, want %d",
					ErrSourceRead, path, gi, el.Name, len(vals), n)
			}
			batch.Columns[el.Name] = decodeColumn(el, vals)
		}

		if err := fn(batch); err != nil {
			return err
		}
	}

	return nil
}

// leafElements returns the leaf schema elements of a flat parquet schema,
// in column order. Nested schemas are rejected: trip-record files are flat,
// and ReadColumnByIndex addresses leaves positionally.
func leafElements(footer *parquet.FileMetaData) ([]*parquet.SchemaElement, error) {
	if footer == nil || len(footer.Schema) == 0 {
		return nil, errors.New("empty schema")
	}
	leaves := footer.Schema[1:]
	for _, el := range leaves {
		if el.NumChildren != nil && *el.NumChildren > 0 {
			return nil, fmt.Errorf("nested column %q not supported", el.Name)
		}
	}
	return leaves, nil
}
