// Package monitor implements the scheduled sampler that turns live pool
// state into alerts and scaling decisions.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gopherpool/enginepool/alert"
	"github.com/gopherpool/enginepool/logging"
	"github.com/gopherpool/enginepool/stats"
)

// Sampler produces a point-in-time PoolSnapshot. A pool.Engine implements
// this without monitor importing pool, avoiding an import cycle.
type Sampler interface {
	Sample() stats.PoolSnapshot
	PoolName() string
}

// ScalingAttempter is the narrow surface Monitor needs from a Scaler.
type ScalingAttempter interface {
	AttemptScaling(stats.PoolSnapshot)
}

// Config controls monitor cadence and alert thresholds, mirroring the
// interface contract's Monitoring/Alerts configuration groups (§6).
type Config struct {
	MonitoringPeriod time.Duration

	EnableDetailedMetrics bool
	EnableThreadMetrics   bool
	EnableQueueMetrics    bool

	ThreadPoolUsageThreshold int // percent, 1..100
	QueueSizeWarningThreshold int

	MinimumAlertLevel alert.Level
}

// DefaultConfig returns the interface contract's documented defaults.
func DefaultConfig() Config {
	return Config{
		MonitoringPeriod:          5 * time.Second,
		EnableDetailedMetrics:     true,
		EnableThreadMetrics:       true,
		EnableQueueMetrics:        true,
		ThreadPoolUsageThreshold:  80,
		QueueSizeWarningThreshold: 1000,
		MinimumAlertLevel:         alert.LevelWarning,
	}
}

// Monitor is a single-goroutine ticker that samples a pool, publishes
// threshold alerts, and drives a Scaler. Grounded on the teacher's
// SnapshotPoller.loop channel-driven ticker pattern.
type Monitor struct {
	cfg     Config
	sampler Sampler
	scaler  ScalingAttempter
	bus     *alert.Bus
	logger  logging.Logger

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Monitor. scaler may be nil, in which case no scaling
// decision is attempted on any tick. bus defaults to alert.Global() and
// logger to a no-op implementation when nil.
func New(cfg Config, sampler Sampler, scaler ScalingAttempter, bus *alert.Bus, logger logging.Logger) *Monitor {
	if bus == nil {
		bus = alert.Global()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Monitor{
		cfg:     cfg,
		sampler: sampler,
		scaler:  scaler,
		bus:     bus,
		logger:  logger,
	}
}

// Start launches the ticker goroutine. Calling Start twice on the same
// Monitor is a no-op after the first call.
func (m *Monitor) Start() {
	if m.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop terminates the ticker goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
	})
	if m.done != nil {
		<-m.done
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	period := m.cfg.MonitoringPeriod
	if period <= 0 {
		period = DefaultConfig().MonitoringPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick runs one monitoring cycle. Any panic raised while sampling or
// publishing is recovered and surfaced as an ERROR alert so a single bad
// cycle never kills the monitor goroutine.
func (m *Monitor) tick() {
	defer func() {
		if r := recover(); r != nil {
			m.publish(alert.LevelError, fmt.Sprintf("Monitoring failed: %v", r), nil)
		}
	}()

	if !m.cfg.EnableDetailedMetrics {
		return
	}

	snapshot := m.sampler.Sample()

	if m.cfg.EnableThreadMetrics && snapshot.PoolSize > 0 {
		usage := snapshot.ThreadUtilization() * 100
		if usage > float64(m.cfg.ThreadPoolUsageThreshold) {
			m.publish(alert.LevelWarning, fmt.Sprintf(
				"Thread pool usage (%.0f%%) exceeded threshold (%d%%)", usage, m.cfg.ThreadPoolUsageThreshold),
				alert.Metadata{"poolName": m.sampler.PoolName(), "usage": usage})
		}
	}

	if m.cfg.EnableQueueMetrics && snapshot.QueueSize > m.cfg.QueueSizeWarningThreshold {
		m.publish(alert.LevelWarning, fmt.Sprintf(
			"Queue size (%d) exceeded threshold (%d)", snapshot.QueueSize, m.cfg.QueueSizeWarningThreshold),
			alert.Metadata{"poolName": m.sampler.PoolName(), "queueSize": snapshot.QueueSize})
	}

	if m.scaler != nil {
		m.scaler.AttemptScaling(snapshot)
	}

	statsJSON, err := json.Marshal(snapshot.ToJSON())
	if err != nil {
		panic(err)
	}
	m.publish(alert.LevelInfo, fmt.Sprintf("Thread pool stats: %s", statsJSON),
		alert.Metadata{"poolName": m.sampler.PoolName()})
}

// publish drops alerts below the configured minimum level at the source,
// per the interface contract: suppression happens in Monitor, not in the
// bus itself.
func (m *Monitor) publish(level alert.Level, message string, metadata alert.Metadata) {
	if level < m.cfg.MinimumAlertLevel {
		return
	}
	m.bus.Publish(message, level, alert.KindMonitoring, metadata)
}
