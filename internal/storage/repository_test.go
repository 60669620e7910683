package storage

import (
	"context"
	"errors"
	"testing"
)

type fakeRepo struct{}

func (f *fakeRepo) Close()                                                {}
func (f *fakeRepo) TableExists(context.Context, string) (bool, error)     { return false, nil }
func (f *fakeRepo) CreateTable(context.Context, TableSpec) error          { return nil }
func (f *fakeRepo) DropTable(context.Context, string) error               { return nil }
func (f *fakeRepo) Truncate(context.Context, string) error                { return nil }
func (f *fakeRepo) InsertBatch(context.Context, string, []string, [][]any) (int64, error) {
	return 0, nil
}

func TestRegisterAndNew(t *testing.T) {
	Register("fake-kind", func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-kind", DSN: "ignored"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := repo.(*fakeRepo); !ok {
		t.Fatalf("expected *fakeRepo, got %T", repo)
	}
}

func TestNew_RejectsEmptyAndUnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	if _, err := New(context.Background(), Config{Kind: "no-such-backend"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	f := func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil }
	Register("dup-kind", f)
	Register("dup-kind", f)
}

func TestTextSpec(t *testing.T) {
	t.Parallel()

	spec, err := TextSpec("public.imports", []string{"id", "name"})
	if err != nil {
		t.Fatalf("TextSpec: %v", err)
	}
	if spec.Name != "public.imports" || len(spec.Columns) != 2 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	for _, c := range spec.Columns {
		if c.Type != TypeText {
			t.Fatalf("expected text type, got %q", c.Type)
		}
	}
	cols := spec.ColumnNames()
	if cols[0] != "id" || cols[1] != "name" {
		t.Fatalf("unexpected column names: %v", cols)
	}
}

func TestTextSpec_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		table   string
		columns []string
	}{
		{"empty table", "", []string{"a"}},
		{"no columns", "t", nil},
		{"empty column", "t", []string{"a", " "}},
		{"duplicate column", "t", []string{"a", "b", "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := TextSpec(tc.table, tc.columns); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestCheckRows(t *testing.T) {
	t.Parallel()

	cols := []string{"a", "b"}
	if err := CheckRows("t", cols, [][]any{{1, 2}, {3, 4}}); err != nil {
		t.Fatalf("CheckRows: %v", err)
	}

	err := CheckRows("t", cols, [][]any{{1, 2}, {3}})
	var sme *SchemaMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("expected *SchemaMismatchError, got %T: %v", err, err)
	}
	if sme.Row != 1 || sme.Want != 2 || sme.Got != 1 {
		t.Fatalf("unexpected error details: %+v", sme)
	}
}

func TestSplitQualifiedName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, schema, table string
	}{
		{"public.imports", "public", "imports"},
		{"imports", "", "imports"},
		{"a.b.c", "", "a.b.c"},
		{" public . t ", "public", "t"},
	}
	for _, tc := range cases {
		schema, table := SplitQualifiedName(tc.in)
		if schema != tc.schema || table != tc.table {
			t.Fatalf("SplitQualifiedName(%q) = (%q, %q), want (%q, %q)",
				tc.in, schema, table, tc.schema, tc.table)
		}
	}
}
