// Package sqlite implements storage.Repository for SQLite.
//
// It exists for local development and integration tests: the whole pipeline
// can run against a file (or :memory:) database with no server. SQLite has
// no date or unsigned types, so timestamps are stored as RFC3339Nano TEXT
// for reliable round-trips and lexicographic MIN/MAX.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taxiload/internal/storage"
)

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repo) CheckTable(ctx context.Context, table string) error {
	q := fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", sqlIdent(table))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("table %s not queryable: %w", table, err)
	}
	defer rows.Close()
	return rows.Err()
}

// InsertRows performs one multi-row INSERT per batch. Timestamps are
// normalized to RFC3339Nano text before binding.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for _, v := range row {
			if ts, ok := v.(time.Time); ok {
				v = formatTime(ts)
			}
			args = append(args, v)
		}
	}

	res, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *Repo) CountRows(ctx context.Context, table string) (uint64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", sqlIdent(table))
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return uint64(n), nil
}

func (r *Repo) DateStats(ctx context.Context, table, dateColumn string) (storage.DateStats, error) {
	col := sqlIdent(dateColumn)
	q := fmt.Sprintf(
		"SELECT MIN(%[1]s), MAX(%[1]s), COUNT(DISTINCT %[1]s) FROM %[2]s",
		col, sqlIdent(table),
	)

	var minRaw, maxRaw sql.NullString
	var distinct int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&minRaw, &maxRaw, &distinct); err != nil {
		return storage.DateStats{}, fmt.Errorf("date stats %s: %w", table, err)
	}

	out := storage.DateStats{DistinctDays: uint64(distinct)}
	var err error
	if minRaw.Valid {
		if out.MinDate, err = parseTime(minRaw.String); err != nil {
			return storage.DateStats{}, fmt.Errorf("date stats %s: min: %w", table, err)
		}
	}
	if maxRaw.Valid {
		if out.MaxDate, err = parseTime(maxRaw.String); err != nil {
			return storage.DateStats{}, fmt.Errorf("date stats %s: max: %w", table, err)
		}
	}
	return out, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// formatTime stores timestamps as RFC3339Nano in UTC; lexicographic order
// then matches chronological order, which MIN/MAX relies on.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts what we write plus common formats other tools leave in
// SQLite files.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
