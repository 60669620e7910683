package storage

import "fmt"

// SchemaMismatchError reports a batch row whose shape does not match the
// lifecycle-established table schema.
type SchemaMismatchError struct {
	Table string
	Want  int // expected column count
	Got   int // offending row's value count
	Row   int // zero-based index within the batch
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("storage: table %s: batch row %d has %d values, schema has %d columns",
		e.Table, e.Row, e.Got, e.Want)
}

// WriteError wraps a database failure during a batch write. The batch's
// transaction is rolled back; nothing from the failing batch is committed.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage: write to %s: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
