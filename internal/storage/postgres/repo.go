// Package postgres implements storage.Repository for PostgreSQL, used when
// trips are loaded into a Postgres-based warehouse instead of ClickHouse.
// Unsigned trip fields map onto the nearest signed SQL types (SMALLINT,
// INTEGER); pgx handles the Go-side conversions.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxiload/internal/storage"
)

type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) CheckTable(ctx context.Context, table string) error {
	q := fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", pgx.Identifier{table}.Sanitize())
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("table %s not queryable: %w", table, err)
	}
	rows.Close()
	return rows.Err()
}

// InsertRows uses COPY, the fastest bulk path pgx offers. Each call is its
// own copy operation; nothing spans batches.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func (r *Repo) CountRows(ctx context.Context, table string) (uint64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", pgx.Identifier{table}.Sanitize())
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return uint64(n), nil
}

func (r *Repo) DateStats(ctx context.Context, table, dateColumn string) (storage.DateStats, error) {
	col := pgx.Identifier{dateColumn}.Sanitize()
	q := fmt.Sprintf(
		"SELECT MIN(%[1]s), MAX(%[1]s), COUNT(DISTINCT %[1]s) FROM %[2]s",
		col, pgx.Identifier{table}.Sanitize(),
	)

	var minDate, maxDate *time.Time
	var distinct int64
	if err := r.pool.QueryRow(ctx, q).Scan(&minDate, &maxDate, &distinct); err != nil {
		return storage.DateStats{}, fmt.Errorf("date stats %s: %w", table, err)
	}

	out := storage.DateStats{DistinctDays: uint64(distinct)}
	if minDate != nil {
		out.MinDate = *minDate
	}
	if maxDate != nil {
		out.MaxDate = *maxDate
	}
	return out, nil
}

func (r *Repo) Close() { r.pool.Close() }
