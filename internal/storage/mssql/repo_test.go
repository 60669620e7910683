package mssql

import (
	"testing"

	"csvload/internal/storage"
)

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	spec, err := storage.TextSpec("dbo.imports", []string{"id", "full name"})
	if err != nil {
		t.Fatalf("TextSpec: %v", err)
	}

	got, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := `CREATE TABLE [dbo].[imports] ([id] nvarchar(max) NULL, [full name] nvarchar(max) NULL);`
	if got != want {
		t.Fatalf("unexpected SQL:\n got %s\nwant %s", got, want)
	}
}

func TestBuildCreateSQL_Rejects(t *testing.T) {
	t.Parallel()

	if _, err := buildCreateSQL(storage.TableSpec{Name: ""}); err == nil {
		t.Fatalf("expected error for empty table name")
	}
	if _, err := buildCreateSQL(storage.TableSpec{Name: "t"}); err == nil {
		t.Fatalf("expected error for no columns")
	}
	bad := storage.TableSpec{Name: "t", Columns: []storage.ColumnSpec{{Name: "a", Type: "datetime2"}}}
	if _, err := buildCreateSQL(bad); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestSQLIdent_EscapesBrackets(t *testing.T) {
	t.Parallel()

	if got := sqlIdent("a]b"); got != "[a]]b]" {
		t.Fatalf("unexpected ident: %s", got)
	}
}

func TestQuoteQualified(t *testing.T) {
	t.Parallel()

	if got := quoteQualified("dbo.t"); got != "[dbo].[t]" {
		t.Fatalf("unexpected qualified name: %s", got)
	}
	if got := quoteQualified("t"); got != "[t]" {
		t.Fatalf("unexpected bare name: %s", got)
	}
}
