package storage

import (
	"fmt"
	"strings"
)

// TypeText is the only logical column type the loader creates. The column
// typing rule is deliberately uniform: every column inferred from a CSV
// header is text, and each backend maps it to its native type (Postgres
// "text", SQL Server "nvarchar(max)", SQLite "TEXT"). Anything richer is
// schema inference, which this job does not do.
const TypeText = "text"

type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

type ColumnSpec struct {
	Name string
	Type string // logical type; only TypeText today
}

// TextSpec builds an all-text TableSpec from a header-derived column list.
//
// Errors:
//   - empty table name, no columns, an empty column name, or a duplicate
//     column name. Duplicates must be rejected here: CREATE TABLE would fail
//     later with a far less useful error.
func TextSpec(table string, columns []string) (TableSpec, error) {
	if strings.TrimSpace(table) == "" {
		return TableSpec{}, fmt.Errorf("storage: table name is empty")
	}
	if len(columns) == 0 {
		return TableSpec{}, fmt.Errorf("storage: table %s: no columns", table)
	}

	seen := make(map[string]bool, len(columns))
	specs := make([]ColumnSpec, 0, len(columns))
	for i, c := range columns {
		if strings.TrimSpace(c) == "" {
			return TableSpec{}, fmt.Errorf("storage: table %s: column %d is empty", table, i+1)
		}
		if seen[c] {
			return TableSpec{}, fmt.Errorf("storage: table %s: duplicate column %q", table, c)
		}
		seen[c] = true
		specs = append(specs, ColumnSpec{Name: c, Type: TypeText})
	}
	return TableSpec{Name: table, Columns: specs}, nil
}

// ColumnNames returns the spec's column names in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// CheckRows validates every row's width against columns before a write.
// Backends call this first so a mismatch surfaces as a schema error, not as
// an opaque driver failure mid-transaction.
func CheckRows(table string, columns []string, rows [][]any) error {
	for i, row := range rows {
		if len(row) != len(columns) {
			return &SchemaMismatchError{
				Table: table,
				Want:  len(columns),
				Got:   len(row),
				Row:   i,
			}
		}
	}
	return nil
}

// SplitQualifiedName splits a schema-qualified name into (schema, table).
//
// Examples:
//   - "public.imports" => ("public", "imports")
//   - "imports"        => ("", "imports")
//
// This helper is intentionally conservative: it only handles a single dot.
// If callers pass a more complex expression, we treat it as unqualified.
func SplitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
