// Package config resolves runtime settings for upload runs from flags and
// environment variables. Precedence is flag, then environment, then default.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted when the corresponding flag is empty.
const (
	EnvClickHouseDSN = "CLICKHOUSE_CONNECTION_STRING"
	EnvPostgresDSN   = "POSTGRES_CONNECTION_STRING"
	EnvSQLiteDSN     = "SQLITE_PATH"
)

// DefaultClickHouseDSN targets a local server with default credentials, the
// setup every ClickHouse docker image ships with.
const DefaultClickHouseDSN = "clickhouse://default:@localhost:9000/default"

// Settings is the fully resolved run configuration.
type Settings struct {
	Categories     []string // trip categories to process, in order
	DataDir        string   // directory scanned for parquet files
	StorageKind    string   // registered storage backend name
	DSN            string   // backend connection string
	MetricsBackend string   // "datadog" or "none"
	Verbose        bool
}

// Categories expands a category selector into the list of categories to run.
// "all" expands to every known category in a fixed order.
func Categories(name string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yellow":
		return []string{"yellow"}, nil
	case "green":
		return []string{"green"}, nil
	case "all":
		return []string{"yellow", "green"}, nil
	default:
		return nil, fmt.Errorf("unknown taxi type %q (want yellow, green, or all)", name)
	}
}

// ResolveDSN picks the connection string for a storage kind: explicit flag
// value first, then the kind's environment variable, then the kind's default
// (only ClickHouse has one).
func ResolveDSN(kind, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	switch kind {
	case "clickhouse":
		if v := os.Getenv(EnvClickHouseDSN); v != "" {
			return v
		}
		return DefaultClickHouseDSN
	case "postgres":
		return os.Getenv(EnvPostgresDSN)
	case "sqlite":
		return os.Getenv(EnvSQLiteDSN)
	}
	return ""
}

// Severity levels for validation issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one validation finding. Errors make the settings unusable;
// warnings are printed and ignored.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

// Validate checks resolved settings and returns all findings at once, so a
// misconfigured run reports everything wrong in a single pass.
func Validate(s Settings) []Issue {
	var issues []Issue

	if len(s.Categories) == 0 {
		issues = append(issues, Issue{SeverityError, "categories", "no categories selected"})
	}
	if s.DataDir == "" {
		issues = append(issues, Issue{SeverityError, "data-path", "data directory is required"})
	} else if st, err := os.Stat(s.DataDir); err != nil {
		issues = append(issues, Issue{SeverityError, "data-path", fmt.Sprintf("not accessible: %v", err)})
	} else if !st.IsDir() {
		issues = append(issues, Issue{SeverityError, "data-path", "not a directory"})
	}
	if s.StorageKind == "" {
		issues = append(issues, Issue{SeverityError, "storage", "storage kind is required"})
	}
	if s.DSN == "" {
		issues = append(issues, Issue{SeverityError, "dsn",
			fmt.Sprintf("no connection string for storage kind %q (flag or environment)", s.StorageKind)})
	}

	switch s.MetricsBackend {
	case "", "none", "datadog":
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics-backend",
			fmt.Sprintf("unknown backend %q; metrics disabled", s.MetricsBackend)})
	}

	return issues
}

// HasError reports whether any issue is severity error.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
