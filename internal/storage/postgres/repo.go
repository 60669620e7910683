package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"csvload/internal/storage"
)

/*
Repo implements storage.Repository for Postgres.

Batch writes use COPY inside a transaction: COPY is the fast path for bulk
loads and, unlike a multi-row INSERT, has no parameter-count ceiling, so a
10k-row chunk of a wide file still goes through in one unit of work.
*/
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed Repo and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// TableExists resolves the (optionally schema-qualified) name via
// to_regclass, which honors the connection's search_path for bare names.
func (r *Repo) TableExists(ctx context.Context, table string) (bool, error) {
	var reg *string
	if err := r.pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, table).Scan(&reg); err != nil {
		return false, fmt.Errorf("postgres: table exists %s: %w", table, err)
	}
	return reg != nil, nil
}

// CreateTable creates the table from spec. It fails when the table already
// exists; the lifecycle layer decides whether to drop first.
func (r *Repo) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("postgres: create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", spec.Name, err)
	}
	return nil
}

// DropTable drops the table if present.
func (r *Repo) DropTable(ctx context.Context, table string) error {
	if _, err := r.pool.Exec(ctx, "DROP TABLE IF EXISTS "+quoteQualified(table)); err != nil {
		return fmt.Errorf("postgres: drop table %s: %w", table, err)
	}
	return nil
}

// Truncate empties the table in one statement.
func (r *Repo) Truncate(ctx context.Context, table string) error {
	if _, err := r.pool.Exec(ctx, "TRUNCATE TABLE "+quoteQualified(table)); err != nil {
		return fmt.Errorf("postgres: truncate %s: %w", table, err)
	}
	return nil
}

// InsertBatch writes one batch via COPY in a single transaction.
func (r *Repo) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.CheckRows(table, columns, rows); err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}
	return n, nil
}

// buildCreateSQL constructs the optional CREATE SCHEMA statement and the
// CREATE TABLE statement for spec.
//
// Why this exists:
//   - It is pure and deterministic, so we can unit test correctness
//     (quoting, type mapping, schema qualification) without a database.
func buildCreateSQL(spec storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", "", fmt.Errorf("postgres: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", "", fmt.Errorf("postgres: table %s: no columns", spec.Name)
	}

	if schema, _ := storage.SplitQualifiedName(spec.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteQualified(spec.Name))
	b.WriteString(" (")
	for i, c := range spec.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		typ, err := typeFor(c.Type)
		if err != nil {
			return "", "", fmt.Errorf("postgres: table %s: column %s: %w", spec.Name, c.Name, err)
		}
		b.WriteString(pgIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(typ)
	}
	b.WriteString(");")

	return schemaSQL, b.String(), nil
}

// typeFor maps a logical column type to its Postgres type.
func typeFor(logical string) (string, error) {
	switch logical {
	case storage.TypeText:
		return "text", nil
	default:
		return "", fmt.Errorf("unsupported logical type %q", logical)
	}
}

// pgIdent double-quotes a single identifier.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteQualified quotes each part of a possibly schema-qualified name.
func quoteQualified(name string) string {
	if schema, table := storage.SplitQualifiedName(name); schema != "" {
		return pgIdent(schema) + "." + pgIdent(table)
	}
	return pgIdent(strings.TrimSpace(name))
}

// identifier converts a possibly qualified name to a pgx.Identifier for COPY.
func identifier(name string) pgx.Identifier {
	if schema, table := storage.SplitQualifiedName(name); schema != "" {
		return pgx.Identifier{schema, table}
	}
	return pgx.Identifier{strings.TrimSpace(name)}
}
