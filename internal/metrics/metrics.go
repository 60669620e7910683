// Package metrics defines the minimal instrumentation surface the loader
// emits against. Job code depends only on Backend; the concrete sink
// (Datadog, or nothing) is chosen at startup.
package metrics

// Labels are free-form metric tags, e.g. {"status": "ok"}.
type Labels map[string]string

// Metric names emitted by the loader. A backend may ignore names it does
// not understand.
const (
	RowsTotal            = "load_rows_total"
	ChunksTotal          = "load_chunks_total"
	JobsTotal            = "load_jobs_total"
	ChunkWriteDuration   = "load_chunk_write_duration_seconds"
	JobDurationHistogram = "load_job_duration_seconds"
)

// Backend receives counter increments and histogram samples.
//
// Implementations must be safe for concurrent use; the driver may report
// from more than one goroutine.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Nop discards everything. The default when no sink is configured.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
