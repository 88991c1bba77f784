// Package storage defines the destination repository abstraction for trip
// uploads and a factory registry for its backends.
//
// The upload pipeline depends only on Repository; each backend package
// registers itself under a kind ("clickhouse", "postgres", "sqlite") from an
// init function, mirroring how database/sql drivers self-register.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config is the minimal configuration needed to create a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; its format is
//     backend-specific (clickhouse:// URI, postgres:// URI, sqlite path).
type Config struct {
	Kind string
	DSN  string
}

// DateStats summarizes the derived pickup-date column of a destination
// table, used by the post-load verification query.
type DateStats struct {
	MinDate      time.Time
	MaxDate      time.Time
	DistinctDays uint64
}

// Repository is the destination-side contract the upload pipeline needs.
//
// IMPORTANT: the interface is intentionally minimal. Tables are never
// created by this system; their prior existence is a precondition checked
// via CheckTable.
type Repository interface {
	// Ping verifies the session is usable. Called once at startup;
	// a failure there is fatal for the whole run.
	Ping(ctx context.Context) error

	// CheckTable verifies the destination table exists and is queryable.
	CheckTable(ctx context.Context, table string) error

	// InsertRows appends one cleaned batch. Rows are positionally aligned
	// with columns. Implementations must not buffer across calls; a failed
	// insert does not roll back prior successful inserts.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// CountRows returns the current destination row count.
	CountRows(ctx context.Context, table string) (uint64, error)

	// DateStats returns min/max/distinct-count of a date column.
	DateStats(ctx context.Context, table, dateColumn string) (DateStats, error)

	// Close releases backend resources. Call once at process shutdown.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Called from backend init
// functions.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered. Failing
//     fast here avoids ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns (typically a
//     connection failure, which is fatal for the run).
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
