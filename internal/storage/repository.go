// Package storage defines the backend-agnostic repository interface the
// loader writes through, plus the factory registry backends register into.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to create a repository.
//
// When to use:
//   - Use Config when constructing a Repository via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic interface for the loader job.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the job driver and lifecycle manager need. Each backend
// implements these semantics in its own idiomatic way (Postgres COPY,
// SQL Server bulk copy, SQLite prepared inserts).
type Repository interface {
	// Close releases backend resources (connections, prepared statements).
	// Treat Close as "call once" at the end of a run.
	Close()

	// TableExists reports whether table is present in the target database.
	TableExists(ctx context.Context, table string) (bool, error)

	// CreateTable creates the table described by spec. It must fail if the
	// table already exists; the lifecycle manager decides whether to drop
	// first, and a silent create-if-not-exists would mask a schema drift.
	CreateTable(ctx context.Context, spec TableSpec) error

	// DropTable removes table if it exists. Dropping a missing table is a
	// no-op, which keeps drop+recreate idempotent across reruns.
	DropTable(ctx context.Context, table string) error

	// Truncate removes all rows from table as a single logical operation.
	Truncate(ctx context.Context, table string) error

	// InsertBatch appends one batch to table as a single unit of work:
	// either every row in the batch commits or none do.
	//
	// Errors:
	//   - *SchemaMismatchError when a row's width differs from columns.
	//   - *WriteError for any database failure.
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

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
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
