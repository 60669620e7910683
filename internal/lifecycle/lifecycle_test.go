package lifecycle

import (
	"context"
	"errors"
	"testing"

	"csvload/internal/storage"
)

type fakeRepo struct {
	exists    bool
	existsErr error
	dropErr   error
	createErr error
	truncErr  error

	calls []string
}

func (f *fakeRepo) Close() {}

func (f *fakeRepo) TableExists(ctx context.Context, table string) (bool, error) {
	f.calls = append(f.calls, "exists")
	return f.exists, f.existsErr
}

func (f *fakeRepo) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	f.calls = append(f.calls, "create")
	return f.createErr
}

func (f *fakeRepo) DropTable(ctx context.Context, table string) error {
	f.calls = append(f.calls, "drop")
	return f.dropErr
}

func (f *fakeRepo) Truncate(ctx context.Context, table string) error {
	f.calls = append(f.calls, "truncate")
	return f.truncErr
}

func (f *fakeRepo) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.calls = append(f.calls, "insert")
	return int64(len(rows)), nil
}

func spec(t *testing.T) storage.TableSpec {
	t.Helper()
	s, err := storage.TextSpec("imports", []string{"a", "b"})
	if err != nil {
		t.Fatalf("TextSpec: %v", err)
	}
	return s
}

func equalCalls(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestApply_DropRecreates(t *testing.T) {
	repo := &fakeRepo{exists: true}
	out, err := NewManager(repo).Apply(context.Background(), spec(t), Policy{DropTable: true})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !out.TableRecreated || out.RowsDeleted {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !equalCalls(repo.calls, []string{"drop", "create"}) {
		t.Fatalf("unexpected calls: %v", repo.calls)
	}
}

func TestApply_CreatesWhenMissing(t *testing.T) {
	repo := &fakeRepo{exists: false}
	out, err := NewManager(repo).Apply(context.Background(), spec(t), Policy{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !out.TableRecreated {
		t.Fatalf("expected TableRecreated, got %+v", out)
	}
	if !equalCalls(repo.calls, []string{"exists", "create"}) {
		t.Fatalf("unexpected calls: %v", repo.calls)
	}
}

func TestApply_TruncatesExisting(t *testing.T) {
	repo := &fakeRepo{exists: true}
	p := Policy{DeleteRows: true, DeleteMode: DeleteModeTruncate}
	out, err := NewManager(repo).Apply(context.Background(), spec(t), p)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.TableRecreated || !out.RowsDeleted {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !equalCalls(repo.calls, []string{"exists", "truncate"}) {
		t.Fatalf("unexpected calls: %v", repo.calls)
	}
}

func TestApply_AppendLeavesTableAlone(t *testing.T) {
	repo := &fakeRepo{exists: true}
	out, err := NewManager(repo).Apply(context.Background(), spec(t), Policy{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.TableRecreated || out.RowsDeleted {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !equalCalls(repo.calls, []string{"exists"}) {
		t.Fatalf("unexpected calls: %v", repo.calls)
	}
}

func TestApply_RejectsUnknownDeleteMode(t *testing.T) {
	for _, exists := range []bool{true, false} {
		repo := &fakeRepo{exists: exists}
		p := Policy{DeleteRows: true, DeleteMode: "DELETE"}
		_, err := NewManager(repo).Apply(context.Background(), spec(t), p)

		var lerr *Error
		if !errors.As(err, &lerr) {
			t.Fatalf("expected *Error, got %T: %v", err, err)
		}
		if lerr.Op != OpMode || lerr.Indeterminate {
			t.Fatalf("unexpected error: %+v", lerr)
		}
		if len(repo.calls) != 0 {
			t.Fatalf("no statement may run for a bad mode, calls: %v", repo.calls)
		}
	}
}

func TestApply_DropThenCreateFailureIsIndeterminate(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("boom")}
	_, err := NewManager(repo).Apply(context.Background(), spec(t), Policy{DropTable: true})

	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if lerr.Op != OpCreate || !lerr.Indeterminate {
		t.Fatalf("expected indeterminate create failure, got %+v", lerr)
	}
}

func TestApply_DropFailureIsNotIndeterminate(t *testing.T) {
	repo := &fakeRepo{dropErr: errors.New("locked")}
	_, err := NewManager(repo).Apply(context.Background(), spec(t), Policy{DropTable: true})

	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if lerr.Op != OpDrop || lerr.Indeterminate {
		t.Fatalf("unexpected error: %+v", lerr)
	}
}

func TestApply_ExistsCheckFailure(t *testing.T) {
	repo := &fakeRepo{existsErr: errors.New("conn reset")}
	_, err := NewManager(repo).Apply(context.Background(), spec(t), Policy{})

	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if lerr.Op != OpExists {
		t.Fatalf("unexpected op: %q", lerr.Op)
	}
}
