package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"taxiload/internal/config"
	"taxiload/internal/metrics"
	"taxiload/internal/metrics/datadog"
	"taxiload/internal/storage"
	"taxiload/internal/transform"
	"taxiload/internal/uploader"

	// register all backends with the storage factory.
	// flags specify which to use but we build in support for all of them.
	_ "taxiload/internal/storage/all"
)

// main is the entry point for the upload binary. It resolves configuration,
// optionally initializes a metrics backend, and runs one upload per selected
// trip category.
func main() {
	var (
		taxiType          string
		dataPath          string
		storageKind       string
		dsnFlag           string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&taxiType, "taxi-type", "yellow", "trip category to load (yellow, green, all)")
	flag.StringVar(&dataPath, "data-path", "data", "directory containing parquet trip files")
	flag.StringVar(&storageKind, "storage", "clickhouse", "storage backend (clickhouse, postgres, sqlite)")
	flag.StringVar(&dsnFlag, "dsn", "", "connection string (overrides backend env var)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// .env is optional; a missing file is the normal case outside dev.
	if err := godotenv.Load(); err == nil && *verbose {
		log.Printf("config: loaded .env")
	}

	categories, err := config.Categories(taxiType)
	if err != nil {
		fatalf("%v", err)
	}

	settings := config.Settings{
		Categories:     categories,
		DataDir:        dataPath,
		StorageKind:    storageKind,
		DSN:            config.ResolveDSN(storageKind, dsnFlag),
		MetricsBackend: metricsBackendFlg,
		Verbose:        *verbose,
	}

	issues := config.Validate(settings)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	runID := uuid.NewString()

	// Decide metrics backend: flag → env → default.
	backendName := settings.MetricsBackend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		// Datadog backend:
		//   - buffers metrics and submits periodically (default once per minute)
		//   - submits one final time at shutdown (Close())
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		extraTags = append(extraTags, "run:"+runID)

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    "taxiload",
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v tags=%v", backendName, extraTags)
			metrics.SetBackend(b)

			// Close() stops the periodic flush loop and then performs a
			// final Flush(). This is the clean shutdown path.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	repo, err := storage.New(ctx, storage.Config{Kind: settings.StorageKind, DSN: settings.DSN})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer repo.Close()

	if *verbose {
		log.Printf("run_id=%s storage=%s data=%s categories=%v",
			runID, settings.StorageKind, settings.DataDir, settings.Categories)
	}

	failed := false
	for _, cat := range settings.Categories {
		schema, err := transform.ByCategory(cat)
		if err != nil {
			log.Fatalf("%v", err)
		}

		coord := &uploader.Coordinator{
			Repo:   repo,
			Schema: schema,
			Source: uploader.FSSource{},
			Log:    log.Default(),
			RunID:  runID,
		}

		summary, err := coord.Run(ctx, settings.DataDir)
		if err != nil {
			log.Printf("category=%s run failed: %v", cat, err)
			failed = true
			continue
		}

		uploader.WriteReport(os.Stdout, summary)
		if summary.FilesFailed > 0 {
			failed = true
		}
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if failed {
		os.Exit(1)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
