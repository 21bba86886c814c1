// Package prometheus adapts the pool's Stats/Snapshot/Alert surface to
// Prometheus collectors. It is purely additive: the core engine has zero
// import-time dependency on this package, so wiring an exporter is a
// caller-level composition choice, exactly like the teacher's
// observability/prometheus package.
package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/gopherpool/enginepool/pool"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	WaitBuckets []float64
	ExecBuckets []float64
}

// MetricsExporter adapts pool.Metrics to Prometheus collectors: task wait
// and execution duration histograms and an outcome counter, grounded on the
// teacher's MetricsExporter/core.Metrics pairing.
type MetricsExporter struct {
	taskWaitSeconds *prom.HistogramVec
	taskExecSeconds *prom.HistogramVec
	tasksTotal      *prom.CounterVec
}

var _ pool.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors under
// namespace against reg. reg defaults to prom.DefaultRegisterer.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "enginepool"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	waitBuckets := opts.WaitBuckets
	if len(waitBuckets) == 0 {
		waitBuckets = prom.DefBuckets
	}
	execBuckets := opts.ExecBuckets
	if len(execBuckets) == 0 {
		execBuckets = prom.DefBuckets
	}

	waitVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_wait_seconds",
		Help:      "Time a task spent queued before execution started.",
		Buckets:   waitBuckets,
	}, nil)
	execVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_exec_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   execBuckets,
	}, nil)
	tasksVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_total",
		Help:      "Total tasks by outcome.",
	}, []string{"outcome"})

	var err error
	if waitVec, err = registerCollector(reg, waitVec); err != nil {
		return nil, err
	}
	if execVec, err = registerCollector(reg, execVec); err != nil {
		return nil, err
	}
	if tasksVec, err = registerCollector(reg, tasksVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskWaitSeconds: waitVec,
		taskExecSeconds: execVec,
		tasksTotal:      tasksVec,
	}, nil
}

// IncTaskOutcome implements pool.Metrics.
func (m *MetricsExporter) IncTaskOutcome(outcome string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(normalizeLabel(outcome, "unknown")).Inc()
}

// ObserveTaskWait implements pool.Metrics.
func (m *MetricsExporter) ObserveTaskWait(d time.Duration) {
	if m == nil {
		return
	}
	m.taskWaitSeconds.WithLabelValues().Observe(d.Seconds())
}

// ObserveTaskExec implements pool.Metrics.
func (m *MetricsExporter) ObserveTaskExec(d time.Duration) {
	if m == nil {
		return
	}
	m.taskExecSeconds.WithLabelValues().Observe(d.Seconds())
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
