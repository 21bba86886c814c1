package prometheus

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsExporter_RecordMethods verifies each pool.Metrics hook feeds
// the expected Prometheus collector.
func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("enginepool", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.ObserveTaskWait(10 * time.Millisecond)
	exporter.ObserveTaskExec(20 * time.Millisecond)
	exporter.IncTaskOutcome("completed")
	exporter.IncTaskOutcome("completed")
	exporter.IncTaskOutcome("failed")

	completed := testutil.ToFloat64(exporter.tasksTotal.WithLabelValues("completed"))
	if completed != 2 {
		t.Fatalf("completed total = %v, want 2", completed)
	}
	failed := testutil.ToFloat64(exporter.tasksTotal.WithLabelValues("failed"))
	if failed != 1 {
		t.Fatalf("failed total = %v, want 1", failed)
	}

	waitCount, err := histogramSampleCount(exporter.taskWaitSeconds.WithLabelValues())
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if waitCount != 1 {
		t.Fatalf("wait sample count = %d, want 1", waitCount)
	}
}

// TestMetricsExporter_AlreadyRegisteredReuse verifies a second exporter on
// the same registry shares the existing collectors rather than erroring.
func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("enginepool", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("enginepool", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.IncTaskOutcome("submitted")
	second.IncTaskOutcome("submitted")

	got := testutil.ToFloat64(first.tasksTotal.WithLabelValues("submitted"))
	if got != 2 {
		t.Fatalf("shared submitted counter = %v, want 2", got)
	}
}

// TestMetricsExporter_NilReceiverIsSafe verifies every method tolerates a
// nil *MetricsExporter without panicking.
func TestMetricsExporter_NilReceiverIsSafe(t *testing.T) {
	var m *MetricsExporter
	m.IncTaskOutcome("completed")
	m.ObserveTaskWait(time.Second)
	m.ObserveTaskExec(time.Second)
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
