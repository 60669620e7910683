package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"csvload/internal/storage"
)

// newTestRepo opens a throwaway on-disk database. A file DSN is used instead
// of :memory: because database/sql may open several connections and each
// in-memory connection would see its own empty database.
func newTestRepo(t *testing.T) storage.Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	repo, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestRepo_TableLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	spec, err := storage.TextSpec("imports", []string{"id", "name"})
	if err != nil {
		t.Fatalf("TextSpec: %v", err)
	}

	exists, err := repo.TableExists(ctx, "imports")
	if err != nil {
		t.Fatalf("TableExists: %v", err)
	}
	if exists {
		t.Fatalf("table should not exist yet")
	}

	if err := repo.CreateTable(ctx, spec); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if exists, _ = repo.TableExists(ctx, "imports"); !exists {
		t.Fatalf("table should exist after create")
	}

	// Create without drop must fail on an existing table.
	if err := repo.CreateTable(ctx, spec); err == nil {
		t.Fatalf("expected error creating existing table")
	}

	if err := repo.DropTable(ctx, "imports"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if exists, _ = repo.TableExists(ctx, "imports"); exists {
		t.Fatalf("table should be gone after drop")
	}

	// Dropping a missing table is a no-op.
	if err := repo.DropTable(ctx, "imports"); err != nil {
		t.Fatalf("DropTable on missing table: %v", err)
	}
}

func TestRepo_InsertBatchAndTruncate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	spec, _ := storage.TextSpec("imports", []string{"id", "name"})
	if err := repo.CreateTable(ctx, spec); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	cols := spec.ColumnNames()
	n, err := repo.InsertBatch(ctx, "imports", cols, [][]any{
		{"1", "alpha"},
		{"2", nil},
		{"3", "gamma"},
	})
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if n != 3 {
		t.Fatalf("inserted %d rows, want 3", n)
	}

	if err := repo.Truncate(ctx, "imports"); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	n, err = repo.InsertBatch(ctx, "imports", cols, [][]any{{"4", "delta"}})
	if err != nil {
		t.Fatalf("InsertBatch after truncate: %v", err)
	}
	if n != 1 {
		t.Fatalf("inserted %d rows, want 1", n)
	}
}

func TestRepo_InsertBatch_SchemaMismatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	spec, _ := storage.TextSpec("imports", []string{"a", "b"})
	if err := repo.CreateTable(ctx, spec); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	_, err := repo.InsertBatch(ctx, "imports", spec.ColumnNames(), [][]any{{"only one"}})
	var sme *storage.SchemaMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("expected *storage.SchemaMismatchError, got %T: %v", err, err)
	}
}

func TestRepo_InsertBatch_FailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	spec, _ := storage.TextSpec("imports", []string{"a"})
	if err := repo.CreateTable(ctx, spec); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	// Writing against a missing table fails and must not commit anything.
	_, err := repo.InsertBatch(ctx, "nope", []string{"a"}, [][]any{{"x"}})
	var we *storage.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *storage.WriteError, got %T: %v", err, err)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	got := buildInsertSQL("imports", []string{"a", "b"})
	want := `INSERT INTO "imports" ("a", "b") VALUES (?, ?)`
	if got != want {
		t.Fatalf("unexpected SQL:\n got %s\nwant %s", got, want)
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	spec, _ := storage.TextSpec("imports", []string{"id", "name"})
	got, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := `CREATE TABLE "imports" ("id" TEXT, "name" TEXT);`
	if got != want {
		t.Fatalf("unexpected SQL:\n got %s\nwant %s", got, want)
	}
}
