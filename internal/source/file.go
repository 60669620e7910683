package source

import (
	"context"
	"io"
	"os"
)

// Local reads from the local filesystem.
type Local struct {
	path string
}

// NewLocal builds a Source for a filesystem path.
func NewLocal(path string) *Local {
	return &Local{path: path}
}

// Open opens the file from the beginning.
func (l *Local) Open(_ context.Context) (io.ReadCloser, error) {
	return os.Open(l.path)
}
