// Package job sequences one CSV load run: resolve credentials, apply the
// table lifecycle policy, then stream the source into the destination table
// chunk by chunk.
package job

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"csvload/internal/lifecycle"
	"csvload/internal/metrics"
	"csvload/internal/parser/csv"
	"csvload/internal/secrets"
	"csvload/internal/source"
	"csvload/internal/storage"
)

// Options carries the driver's collaborators. Zero values are usable:
// metrics default to a nop backend and logs go to the standard logger.
type Options struct {
	Metrics metrics.Backend
	Logger  *log.Logger
	S3      source.S3Config
}

// Driver runs load jobs. One Driver may run many jobs, but a single job is
// one sequential pass; concurrent runs against the same table are the
// orchestrator's problem to prevent, not ours to survive.
type Driver struct {
	store   secrets.Store
	metrics metrics.Backend
	logger  *log.Logger
	s3cfg   source.S3Config

	// Seams for tests; production uses the package defaults.
	newRepo    func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	openSource func(uri string) (source.Source, error)
}

func NewDriver(store secrets.Store, opts Options) *Driver {
	m := opts.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	l := opts.Logger
	if l == nil {
		l = log.Default()
	}
	d := &Driver{
		store:   store,
		metrics: m,
		logger:  l,
		s3cfg:   opts.S3,
		newRepo: storage.New,
	}
	d.openSource = func(uri string) (source.Source, error) {
		return source.Resolve(uri, d.s3cfg)
	}
	return d
}

/*
Run executes one job to completion or failure.

The run is a straight line through these states:

	init -> credentials-resolved -> table-ready -> loading -> completed

with failed reachable from any of them. On failure the returned LoadResult
still carries the rows and chunks committed before the error; chunks
already written stay written. There is no retry here. A caller that
re-invokes a failed append-mode run will load duplicate rows unless it
also sets the drop or delete flag.
*/
func (d *Driver) Run(ctx context.Context, cfg Config) (LoadResult, error) {
	cfg = cfg.Normalized()

	var res LoadResult
	if err := cfg.Validate(); err != nil {
		return res, d.fail(StateInit, &res, err)
	}

	start := time.Now()
	d.logger.Printf("job: start source=%s table=%s kind=%s chunk_size=%d",
		cfg.SourceURI, cfg.TableName, cfg.StorageKind, cfg.ChunkSize)

	profile, err := d.resolveProfile(ctx, cfg)
	if err != nil {
		return res, d.fail(StateInit, &res, err)
	}
	// The profile is never logged, only the handle it came from.
	d.logger.Printf("job: state=%s secret=%s", StateCredentialsResolved, cfg.SecretHandle)

	reader, err := d.openReader(ctx, cfg)
	if err != nil {
		return res, d.fail(StateCredentialsResolved, &res, err)
	}
	defer reader.Close()

	repo, err := d.connect(ctx, cfg, profile)
	if err != nil {
		return res, d.fail(StateCredentialsResolved, &res, err)
	}
	defer repo.Close()

	spec, err := storage.TextSpec(cfg.TableName, reader.Columns())
	if err != nil {
		return res, d.fail(StateCredentialsResolved, &res, err)
	}

	out, err := d.applyLifecycle(ctx, cfg, repo, spec)
	if err != nil {
		return res, d.fail(StateCredentialsResolved, &res, err)
	}
	res.TableRecreated = out.TableRecreated
	res.RowsDeleted = out.RowsDeleted
	d.logger.Printf("job: state=%s recreated=%t deleted=%t columns=%d",
		StateTableReady, out.TableRecreated, out.RowsDeleted, len(spec.Columns))

	if err := d.load(ctx, cfg, reader, repo, spec, &res); err != nil {
		return res, d.fail(StateLoading, &res, err)
	}

	d.metrics.IncCounter(metrics.JobsTotal, 1, metrics.Labels{"status": "ok"})
	d.metrics.ObserveHistogram(metrics.JobDurationHistogram, time.Since(start).Seconds(), nil)
	d.logger.Printf("job: state=%s rows=%d chunks=%d in %s",
		StateCompleted, res.RowsProcessed, res.ChunksProcessed, time.Since(start).Truncate(time.Millisecond))
	return res, nil
}

// resolveProfile fetches and parses the secret under a bounded timeout.
func (d *Driver) resolveProfile(ctx context.Context, cfg Config) (secrets.ConnectionProfile, error) {
	opCtx, cancel := context.WithTimeout(ctx, cfg.OpTimeout)
	defer cancel()

	profile, err := secrets.NewResolver(d.store).Resolve(opCtx, cfg.SecretHandle)
	if err != nil {
		return secrets.ConnectionProfile{}, wrapTimeout("secret fetch", cfg.OpTimeout, err)
	}
	return profile, nil
}

// openReader resolves the source URI and builds the chunked reader, which
// consumes the header row to fix the column set.
func (d *Driver) openReader(ctx context.Context, cfg Config) (*csv.BatchReader, error) {
	src, err := d.openSource(cfg.SourceURI)
	if err != nil {
		return nil, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	reader, err := csv.NewBatchReader(rc, csv.Options{
		ChunkSize: cfg.ChunkSize,
		Encoding:  cfg.Encoding,
	})
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return reader, nil
}

// connect builds the DSN and opens the storage backend under a bounded
// timeout. The DSN holds the password and is never logged.
func (d *Driver) connect(ctx context.Context, cfg Config, profile secrets.ConnectionProfile) (storage.Repository, error) {
	dsn, err := BuildDSN(cfg.StorageKind, profile)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, cfg.OpTimeout)
	defer cancel()

	repo, err := d.newRepo(opCtx, storage.Config{Kind: cfg.StorageKind, DSN: dsn})
	if err != nil {
		return nil, wrapTimeout("database connect", cfg.OpTimeout, err)
	}
	return repo, nil
}

func (d *Driver) applyLifecycle(ctx context.Context, cfg Config, repo storage.Repository, spec storage.TableSpec) (lifecycle.Outcome, error) {
	opCtx, cancel := context.WithTimeout(ctx, cfg.OpTimeout)
	defer cancel()

	out, err := lifecycle.NewManager(repo).Apply(opCtx, spec, lifecycle.Policy{
		DropTable:  cfg.DropTable,
		DeleteRows: cfg.DeleteRows,
		DeleteMode: cfg.DeleteMode,
	})
	if err != nil {
		return out, wrapTimeout("table lifecycle", cfg.OpTimeout, err)
	}
	return out, nil
}

// load streams batches into the table. Reading the next batch overlaps the
// write of the previous one, but writes happen strictly in source order and
// a write failure stops further reads.
func (d *Driver) load(ctx context.Context, cfg Config, reader *csv.BatchReader, repo storage.Repository, spec storage.TableSpec, res *LoadResult) error {
	columns := spec.ColumnNames()
	batches := make(chan *csv.Batch, 1)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		for {
			b, err := reader.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case batches <- b:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		for b := range batches {
			start := time.Now()

			opCtx, cancel := context.WithTimeout(gctx, cfg.OpTimeout)
			n, err := repo.InsertBatch(opCtx, spec.Name, columns, b.Rows)
			cancel()
			if err != nil {
				return wrapTimeout("chunk write", cfg.OpTimeout, err)
			}

			res.RowsProcessed += n
			res.ChunksProcessed++
			d.metrics.IncCounter(metrics.RowsTotal, float64(n), nil)
			d.metrics.IncCounter(metrics.ChunksTotal, 1, nil)
			d.metrics.ObserveHistogram(metrics.ChunkWriteDuration, time.Since(start).Seconds(), nil)
		}
		return nil
	})

	return g.Wait()
}

// fail records the terminal state and hands the error back unchanged.
func (d *Driver) fail(from State, res *LoadResult, err error) error {
	d.metrics.IncCounter(metrics.JobsTotal, 1, metrics.Labels{"status": "failed"})
	d.logger.Printf("job: state=%s from=%s rows=%d chunks=%d: %v",
		StateFailed, from, res.RowsProcessed, res.ChunksProcessed, err)
	return err
}
