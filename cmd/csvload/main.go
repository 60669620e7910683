package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"csvload/internal/job"
	"csvload/internal/metrics"
	"csvload/internal/metrics/datadog"
	"csvload/internal/secrets"
	"csvload/internal/source"

	// register all storage backends with the factory.
	_ "csvload/internal/storage/mssql"
	_ "csvload/internal/storage/postgres"
	_ "csvload/internal/storage/sqlite"
)

// main parses the invocation surface, wires the secret store and metrics
// backend, and runs exactly one load job. There is no retry loop here; a
// failed run exits non-zero and the orchestrator decides what happens next.
//
// Re-running an append-mode job (no -drop, no -delete) loads the same file
// again and duplicates rows. That is the caller's responsibility to avoid,
// typically by setting -drop or -delete on jobs that may be re-invoked.
func main() {
	var (
		sourceURI    string
		secretHandle string
		secretStore  string
		tableName    string
		storageKind  string
		dropTable    bool
		deleteRows   bool
		deleteMode   string
		chunkSize    int
		encoding     string
		opTimeout    time.Duration
		metricsName  string
		awsRegion    string
	)

	flag.StringVar(&sourceURI, "source", "", "source CSV location: path, file:// or s3:// URI")
	flag.StringVar(&secretHandle, "secret", "", "secret handle holding the connection profile (overrides env CSVLOAD_SECRET)")
	flag.StringVar(&secretStore, "secret-store", "aws", "secret store to use (aws, env)")
	flag.StringVar(&tableName, "table", "", "destination table, optionally schema-qualified")
	flag.StringVar(&storageKind, "kind", "postgres", "storage backend kind (postgres, mssql, sqlite)")
	flag.BoolVar(&dropTable, "drop", false, "drop and recreate the table before loading")
	flag.BoolVar(&deleteRows, "delete", false, "delete existing rows before loading")
	flag.StringVar(&deleteMode, "delete-mode", "TRUNCATE", "how -delete removes rows (only TRUNCATE)")
	flag.IntVar(&chunkSize, "chunk-size", 10000, "rows per write chunk")
	flag.StringVar(&encoding, "encoding", "", "source charset when not UTF-8 (e.g. windows-1250)")
	flag.DurationVar(&opTimeout, "timeout", job.DefaultOpTimeout, "per-operation timeout for network calls")
	flag.StringVar(&metricsName, "metrics-backend", "", "metrics backend to use (datadog, none)")
	flag.StringVar(&awsRegion, "aws-region", "", "AWS region for the secrets manager store (overrides env AWS_REGION)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// Local dev convenience; a missing .env is not an error.
	_ = godotenv.Load()

	if secretHandle == "" {
		secretHandle = os.Getenv("CSVLOAD_SECRET")
	}
	if awsRegion == "" {
		awsRegion = os.Getenv("AWS_REGION")
	}

	ctx := context.Background()

	store, err := buildSecretStore(ctx, secretStore, awsRegion)
	if err != nil {
		fatalf("secret store: %v", err)
	}

	backend := buildMetricsBackend(ctx, metricsName, tableName, *verbose)
	if closer, ok := backend.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Printf("metrics: close/flush error: %v", err)
			}
		}()
	}

	driver := job.NewDriver(store, job.Options{
		Metrics: backend,
		S3:      source.S3ConfigFromEnv(),
	})

	cfg := job.Config{
		SourceURI:    sourceURI,
		SecretHandle: secretHandle,
		TableName:    tableName,
		StorageKind:  storageKind,
		DropTable:    dropTable,
		DeleteRows:   deleteRows,
		DeleteMode:   deleteMode,
		ChunkSize:    chunkSize,
		Encoding:     encoding,
		OpTimeout:    opTimeout,
	}

	start := time.Now()
	res, err := driver.Run(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("loaded %d rows in %d chunks (recreated=%t deleted=%t) in %s",
			res.RowsProcessed, res.ChunksProcessed, res.TableRecreated, res.RowsDeleted,
			time.Since(start).Truncate(time.Millisecond))
	}
}

// buildSecretStore selects where connection profiles come from.
//
// The "env" store reads the whole JSON payload from CSVLOAD_SECRET_JSON and
// serves it for any handle; it exists for local development where AWS
// credentials are not available.
func buildSecretStore(ctx context.Context, kind, region string) (secrets.Store, error) {
	switch kind {
	case "aws":
		return secrets.NewAWSStore(ctx, region)
	case "env":
		payload := os.Getenv("CSVLOAD_SECRET_JSON")
		if payload == "" {
			return nil, fmt.Errorf("env store selected but CSVLOAD_SECRET_JSON is empty")
		}
		return envStore(payload), nil
	default:
		return nil, fmt.Errorf("unknown secret store %q", kind)
	}
}

type envStore string

func (s envStore) Fetch(_ context.Context, _ string) ([]byte, error) {
	return []byte(s), nil
}

// buildMetricsBackend decides the metrics sink: flag, then the
// METRICS_BACKEND env var, defaulting to none.
func buildMetricsBackend(ctx context.Context, name, tableName string, verbose bool) metrics.Backend {
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}

	switch name {
	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		if tableName != "" {
			extraTags = append(extraTags, "table:"+tableName)
		}
		b := datadog.NewBackend(ctx, datadog.Options{
			JobName: "csvload",
			Tags:    extraTags,
		})
		log.Printf("metrics: backend=%v tags=%v", name, extraTags)
		return b

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", name)
		}
		return metrics.Nop{}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
		return metrics.Nop{}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
