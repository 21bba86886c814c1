package pool

import "time"

// Metrics is the narrow observability seam an Engine calls into around task
// submission and execution. It mirrors the teacher's core.Metrics interface:
// implementations (e.g. observability/prometheus.MetricsExporter) live
// outside this package, so pool has zero import-time dependency on any
// specific metrics backend. All methods must be non-blocking.
type Metrics interface {
	IncTaskOutcome(outcome string)
	ObserveTaskWait(d time.Duration)
	ObserveTaskExec(d time.Duration)
}

// NoOpMetrics discards every call. It is the Engine default when no Metrics
// implementation is supplied.
type NoOpMetrics struct{}

func (NoOpMetrics) IncTaskOutcome(string)          {}
func (NoOpMetrics) ObserveTaskWait(time.Duration) {}
func (NoOpMetrics) ObserveTaskExec(time.Duration) {}
