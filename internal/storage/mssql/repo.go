package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"csvload/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// Batch writes use the driver's bulk copy (mssql.CopyIn) inside a
// transaction, mirroring the COPY path of the Postgres backend: one chunk is
// one unit of work regardless of row count.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New constructs a Repo using database/sql and the "sqlserver" driver, which
// the go-mssqldb import above registers. Connectivity is validated via
// PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Single sequential writer; no need for a large pool.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// TableExists checks the name against OBJECT_ID, which resolves both bare
// and schema-qualified user table names.
func (r *Repo) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	q := `SELECT CASE WHEN OBJECT_ID(@p1, 'U') IS NULL THEN 0 ELSE 1 END`
	if err := r.db.QueryRowContext(ctx, q, table).Scan(&n); err != nil {
		return false, fmt.Errorf("mssql: table exists %s: %w", table, err)
	}
	return n == 1, nil
}

// CreateTable creates the table from spec; fails if it already exists.
func (r *Repo) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	ddl, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", spec.Name, err)
	}
	return nil
}

// DropTable drops the table when present. The OBJECT_ID guard keeps the
// statement valid on servers older than the DROP TABLE IF EXISTS syntax.
func (r *Repo) DropTable(ctx context.Context, table string) error {
	q := fmt.Sprintf("IF OBJECT_ID(N'%s', 'U') IS NOT NULL DROP TABLE %s",
		strings.ReplaceAll(table, "'", "''"), quoteQualified(table))
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mssql: drop table %s: %w", table, err)
	}
	return nil
}

// Truncate empties the table in one statement.
func (r *Repo) Truncate(ctx context.Context, table string) error {
	if _, err := r.db.ExecContext(ctx, "TRUNCATE TABLE "+quoteQualified(table)); err != nil {
		return fmt.Errorf("mssql: truncate %s: %w", table, err)
	}
	return nil
}

// InsertBatch writes one batch via bulk copy in a single transaction.
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

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = stmt.Close()
			return 0, &storage.WriteError{Table: table, Err: err}
		}
	}

	// Final Exec with no args flushes the bulk operation.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		_ = stmt.Close()
		return 0, &storage.WriteError{Table: table, Err: err}
	}
	if err := stmt.Close(); err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		// Some server/driver combinations do not report bulk counts.
		n = int64(len(rows))
	}
	return n, nil
}

// buildCreateSQL renders the CREATE TABLE statement for spec.
// Pure so quoting and type mapping are unit testable without a server.
func buildCreateSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s: no columns", spec.Name)
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
			return "", fmt.Errorf("mssql: table %s: column %s: %w", spec.Name, c.Name, err)
		}
		b.WriteString(sqlIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(typ)
		b.WriteString(" NULL")
	}
	b.WriteString(");")
	return b.String(), nil
}

// typeFor maps a logical column type to its SQL Server type.
func typeFor(logical string) (string, error) {
	switch logical {
	case storage.TypeText:
		return "nvarchar(max)", nil
	default:
		return "", fmt.Errorf("unsupported logical type %q", logical)
	}
}

// sqlIdent brackets a single identifier.
func sqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// quoteQualified brackets each part of a possibly schema-qualified name.
func quoteQualified(name string) string {
	if schema, table := storage.SplitQualifiedName(name); schema != "" {
		return sqlIdent(schema) + "." + sqlIdent(table)
	}
	return sqlIdent(strings.TrimSpace(name))
}
