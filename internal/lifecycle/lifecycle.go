// Package lifecycle prepares the destination table before any row is
// written: drop and recreate, create when missing, truncate, or plain
// append, driven by the job flags.
package lifecycle

import (
	"context"
	"fmt"

	"csvload/internal/storage"
)

// Delete modes accepted for the delete_rows flag. Only truncate is valid;
// the enum exists so new modes fail loudly instead of being silently
// treated as truncate.
const (
	DeleteModeTruncate = "TRUNCATE"
)

// Ops on the table that can fail; recorded in Error.Op.
const (
	OpDrop     = "drop"
	OpCreate   = "create"
	OpTruncate = "truncate"
	OpExists   = "exists"
	OpMode     = "delete-mode"
)

// Error reports a failed lifecycle operation.
//
// Indeterminate is set when the table may have been left in an unknown
// shape, e.g. the drop succeeded but the fresh create failed. Callers must
// not write rows after an indeterminate failure.
type Error struct {
	Table         string
	Op            string
	Indeterminate bool
	Err           error
}

func (e *Error) Error() string {
	if e.Indeterminate {
		return fmt.Sprintf("lifecycle: table %s: %s failed, table state indeterminate: %v", e.Table, e.Op, e.Err)
	}
	return fmt.Sprintf("lifecycle: table %s: %s failed: %v", e.Table, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Policy holds the flags that select the lifecycle action.
type Policy struct {
	DropTable  bool
	DeleteRows bool
	DeleteMode string
}

// Outcome records what Apply did, for the final load result.
type Outcome struct {
	TableRecreated bool
	RowsDeleted    bool
}

// Manager applies a Policy against one repository.
type Manager struct {
	repo storage.Repository
}

func NewManager(repo storage.Repository) *Manager {
	return &Manager{repo: repo}
}

// Apply brings the table into the state the policy demands, in this order:
//
//  1. DropTable set: drop if present, then create fresh from spec.
//  2. Table missing: create it.
//  3. DeleteRows set: truncate (the only supported delete mode).
//  4. Otherwise leave the table alone; rows will be appended.
//
// After a nil return the table exists and holds exactly the rows the flags
// imply. Errors are always *Error; a drop that succeeded before a failed
// create is flagged Indeterminate.
func (m *Manager) Apply(ctx context.Context, spec storage.TableSpec, p Policy) (Outcome, error) {
	var out Outcome

	// An unsupported delete mode fails before any statement runs, even when
	// the table is missing and would otherwise just be created.
	if p.DeleteRows && p.DeleteMode != DeleteModeTruncate {
		return out, &Error{
			Table: spec.Name,
			Op:    OpMode,
			Err:   fmt.Errorf("unsupported delete mode %q (only %s)", p.DeleteMode, DeleteModeTruncate),
		}
	}

	if p.DropTable {
		if err := m.repo.DropTable(ctx, spec.Name); err != nil {
			return out, &Error{Table: spec.Name, Op: OpDrop, Err: err}
		}
		if err := m.repo.CreateTable(ctx, spec); err != nil {
			// The old table is gone and the new one did not materialize.
			return out, &Error{Table: spec.Name, Op: OpCreate, Indeterminate: true, Err: err}
		}
		out.TableRecreated = true
		return out, nil
	}

	exists, err := m.repo.TableExists(ctx, spec.Name)
	if err != nil {
		return out, &Error{Table: spec.Name, Op: OpExists, Err: err}
	}
	if !exists {
		if err := m.repo.CreateTable(ctx, spec); err != nil {
			return out, &Error{Table: spec.Name, Op: OpCreate, Err: err}
		}
		out.TableRecreated = true
		return out, nil
	}

	if p.DeleteRows {
		if err := m.repo.Truncate(ctx, spec.Name); err != nil {
			return out, &Error{Table: spec.Name, Op: OpTruncate, Indeterminate: true, Err: err}
		}
		out.RowsDeleted = true
		return out, nil
	}

	// Append semantics: existing rows and schema stay untouched.
	return out, nil
}
