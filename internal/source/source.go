// Package source opens the job's input file from its source URI.
//
// Two schemes are supported:
//   - file://path or a bare filesystem path
//   - s3://bucket/key against any S3-compatible object store
//
// A Source is restartable only from the start: every Open returns a fresh
// reader positioned at byte zero. There is no mid-stream resume.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Source opens the underlying object for reading. Callers own the returned
// reader and must Close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Resolve maps a source URI to a Source.
//
// Edge cases:
//   - "file://" prefixed URIs and bare paths both resolve to a local file.
//   - "s3://" URIs require a non-empty bucket and key.
//   - Other schemes are rejected; the loader has no business guessing.
func Resolve(uri string, s3cfg S3Config) (Source, error) {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return NewLocal(strings.TrimPrefix(uri, "file://")), nil
	case strings.HasPrefix(uri, "s3://"):
		bucket, key, err := splitS3URI(uri)
		if err != nil {
			return nil, err
		}
		return NewS3(s3cfg, bucket, key)
	case strings.Contains(uri, "://"):
		return nil, fmt.Errorf("source: unsupported scheme in %q", uri)
	case uri == "":
		return nil, fmt.Errorf("source: empty uri")
	default:
		return NewLocal(uri), nil
	}
}

// splitS3URI splits "s3://bucket/key/with/slashes" into bucket and key.
func splitS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("source: s3 uri must be s3://bucket/key, got %q", uri)
	}
	return rest[:i], rest[i+1:], nil
}
