package secrets

import (
	"context"
	"fmt"
)

// Store fetches the raw secret payload for a handle. Production uses the AWS
// Secrets Manager store; tests inject a MemoryStore.
type Store interface {
	// Fetch returns the secret payload bytes for handle.
	// Implementations wrap fetch failures in *AccessError.
	Fetch(ctx context.Context, handle string) ([]byte, error)
}

// AccessError reports that the secret could not be fetched at all: the handle
// does not exist, or the caller is not allowed to read it.
type AccessError struct {
	Handle string
	Err    error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("fetch secret %s: %v", e.Handle, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// Resolver turns a secret handle into a ConnectionProfile.
type Resolver struct {
	store Store
}

// NewResolver wires a Resolver to a Store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve fetches and parses the secret behind handle.
//
// Errors:
//   - *AccessError when the fetch is denied or the handle does not exist.
//   - *FormatError when the payload is not the expected JSON shape.
func (r *Resolver) Resolve(ctx context.Context, handle string) (ConnectionProfile, error) {
	if handle == "" {
		return ConnectionProfile{}, &AccessError{Handle: handle, Err: fmt.Errorf("empty secret handle")}
	}

	raw, err := r.store.Fetch(ctx, handle)
	if err != nil {
		return ConnectionProfile{}, err
	}
	return ParseProfile(raw)
}
