package secrets

import (
	"context"
	"fmt"
)

// MemoryStore is an in-memory Store keyed by handle. It exists so the job
// driver and its tests can run without any remote secret backend.
type MemoryStore struct {
	payloads map[string][]byte
}

// NewMemoryStore builds a MemoryStore from a handle -> payload map.
func NewMemoryStore(payloads map[string][]byte) *MemoryStore {
	cp := make(map[string][]byte, len(payloads))
	for k, v := range payloads {
		cp[k] = append([]byte(nil), v...)
	}
	return &MemoryStore{payloads: cp}
}

// Fetch returns the stored payload, or *AccessError for unknown handles.
func (s *MemoryStore) Fetch(_ context.Context, handle string) ([]byte, error) {
	p, ok := s.payloads[handle]
	if !ok {
		return nil, &AccessError{Handle: handle, Err: fmt.Errorf("handle not found")}
	}
	return p, nil
}
