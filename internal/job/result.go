package job

// LoadResult is the immutable outcome of one run. On failure the driver
// still returns it with the counts committed before the failure;
// already-written chunks are never rolled back.
type LoadResult struct {
	RowsProcessed   int64
	ChunksProcessed int
	TableRecreated  bool
	RowsDeleted     bool
}

// State names the driver's position in the run. Terminal states are
// StateCompleted and StateFailed.
type State string

const (
	StateInit                State = "init"
	StateCredentialsResolved State = "credentials-resolved"
	StateTableReady          State = "table-ready"
	StateLoading             State = "loading"
	StateCompleted           State = "completed"
	StateFailed              State = "failed"
)
