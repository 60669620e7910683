package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"csvload/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no TRUNCATE statement; Truncate runs DELETE FROM, which is
//     still one statement and benefits from the truncate optimization when
//     no triggers exist.
//   - There is no bulk-copy API, so InsertBatch loops a prepared INSERT
//     inside a transaction; the transaction still gives chunk atomicity.
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

func (r *Repo) Close() { _ = r.db.Close() }

// TableExists queries sqlite_master for a user table of this name.
func (r *Repo) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	q := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
	if err := r.db.QueryRowContext(ctx, q, table).Scan(&n); err != nil {
		return false, fmt.Errorf("sqlite: table exists %s: %w", table, err)
	}
	return n > 0, nil
}

// CreateTable creates the table from spec; fails if it already exists.
func (r *Repo) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	ddl, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", spec.Name, err)
	}
	return nil
}

// DropTable drops the table if present.
func (r *Repo) DropTable(ctx context.Context, table string) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(table)); err != nil {
		return fmt.Errorf("sqlite: drop table %s: %w", table, err)
	}
	return nil
}

// Truncate removes all rows. DELETE without a WHERE clause is SQLite's
// truncate; see the type comment.
func (r *Repo) Truncate(ctx context.Context, table string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+sqlIdent(table)); err != nil {
		return fmt.Errorf("sqlite: truncate %s: %w", table, err)
	}
	return nil
}

// InsertBatch writes one batch with a prepared INSERT inside a transaction.
func (r *Repo) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.CheckRows(table, columns, rows); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, buildInsertSQL(table, columns))
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}
	defer stmt.Close()

	var n int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, &storage.WriteError{Table: table, Err: err}
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}
	return n, nil
}

// buildCreateSQL renders the CREATE TABLE statement for spec.
func buildCreateSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("sqlite: table %s: no columns", spec.Name)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(sqlIdent(spec.Name))
	b.WriteString(" (")
	for i, c := range spec.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		typ, err := typeFor(c.Type)
		if err != nil {
			return "", fmt.Errorf("sqlite: table %s: column %s: %w", spec.Name, c.Name, err)
		}
		b.WriteString(sqlIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(typ)
	}
	b.WriteString(");")
	return b.String(), nil
}

// buildInsertSQL renders the prepared INSERT for one row.
func buildInsertSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(")")
	return b.String()
}

// typeFor maps a logical column type to its SQLite type.
func typeFor(logical string) (string, error) {
	switch logical {
	case storage.TypeText:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("unsupported logical type %q", logical)
	}
}

// sqlIdent double-quotes a single identifier. SQLite has no schemas in the
// Postgres sense, so qualified names are treated as plain identifiers.
func sqlIdent(name string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(name), `"`, `""`) + `"`
}
