package job

import (
	"fmt"
	"strings"
	"time"

	"csvload/internal/lifecycle"
	"csvload/internal/parser/csv"
)

// Config is the full invocation surface of one load run. Supplied once at
// job start and read-only thereafter.
type Config struct {
	SourceURI    string
	SecretHandle string
	TableName    string

	StorageKind string // registered backend kind: postgres, mssql, sqlite

	DropTable  bool
	DeleteRows bool
	DeleteMode string

	ChunkSize int
	Encoding  string // optional source charset, e.g. "windows-1250"

	// OpTimeout bounds each network operation (secret fetch, connect,
	// lifecycle, every chunk write). Zero means DefaultOpTimeout.
	OpTimeout time.Duration
}

const DefaultOpTimeout = 60 * time.Second

// Normalized returns a copy with defaults filled in.
func (c Config) Normalized() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = csv.DefaultChunkSize
	}
	if c.DeleteMode == "" {
		c.DeleteMode = lifecycle.DeleteModeTruncate
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	return c
}

// Validate rejects configs that cannot identify a run. Defaults are not
// applied here; call Normalized first.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SourceURI) == "" {
		return fmt.Errorf("job: source uri is required")
	}
	if strings.TrimSpace(c.SecretHandle) == "" {
		return fmt.Errorf("job: secret handle is required")
	}
	if strings.TrimSpace(c.TableName) == "" {
		return fmt.Errorf("job: table name is required")
	}
	if strings.TrimSpace(c.StorageKind) == "" {
		return fmt.Errorf("job: storage kind is required")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("job: chunk size must be >= 1, got %d", c.ChunkSize)
	}
	// DeleteMode is deliberately not checked here: the lifecycle manager
	// rejects an unsupported mode with a typed *lifecycle.Error before
	// touching the table, and callers match on that type.
	return nil
}
