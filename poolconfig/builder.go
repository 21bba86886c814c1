package poolconfig

import (
	"time"

	"github.com/gopherpool/enginepool/alert"
	"github.com/gopherpool/enginepool/logging"
	"github.com/gopherpool/enginepool/persistence"
	"github.com/gopherpool/enginepool/pool"
	"github.com/gopherpool/enginepool/scaling"
)

// Builder validates every field of a Config at Build() time, grounded on
// the pack's layered-config convention (gcsfuse, vaino) blended with the
// teacher's preference for explicit constructors over deep option structs.
type Builder struct {
	cfg Config
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

func (b *Builder) WithPoolName(name string) *Builder {
	b.cfg.PoolName = name
	return b
}

func (b *Builder) WithCorePoolSize(n int) *Builder {
	b.cfg.CorePoolSize = n
	return b
}

func (b *Builder) WithMaxPoolSize(n int) *Builder {
	b.cfg.MaxPoolSize = n
	return b
}

func (b *Builder) WithKeepAliveTime(d time.Duration) *Builder {
	b.cfg.KeepAliveTime = d
	return b
}

func (b *Builder) WithQueueCapacity(n int) *Builder {
	b.cfg.QueueCapacity = n
	return b
}

func (b *Builder) WithMonitoringPeriod(d time.Duration) *Builder {
	b.cfg.MonitoringPeriod = d
	return b
}

func (b *Builder) WithSamplingInterval(d time.Duration) *Builder {
	b.cfg.SamplingInterval = d
	return b
}

func (b *Builder) WithDetailedMetrics(enabled bool) *Builder {
	b.cfg.EnableDetailedMetrics = enabled
	return b
}

func (b *Builder) WithLatencyPercentiles(p []int) *Builder {
	b.cfg.LatencyPercentiles = p
	return b
}

func (b *Builder) WithQueueSizeWarningThreshold(n int) *Builder {
	b.cfg.QueueSizeWarningThreshold = n
	return b
}

func (b *Builder) WithTaskTimeout(d time.Duration) *Builder {
	b.cfg.TaskTimeout = d
	return b
}

func (b *Builder) WithThreadPoolUsageThreshold(percent int) *Builder {
	b.cfg.ThreadPoolUsageThreshold = percent
	return b
}

func (b *Builder) WithMinimumAlertLevel(level alert.Level) *Builder {
	b.cfg.MinimumAlertLevel = level
	return b
}

func (b *Builder) WithScalingStrategy(s scaling.Strategy) *Builder {
	b.cfg.Strategy = s
	return b
}

func (b *Builder) WithScalingCheckPeriod(d time.Duration) *Builder {
	b.cfg.ScalingCheckPeriod = d
	return b
}

func (b *Builder) WithThreadBounds(minThreads, maxThreads int) *Builder {
	b.cfg.MinThreads = minThreads
	b.cfg.MaxThreads = maxThreads
	return b
}

func (b *Builder) WithPersistence(enabled bool, strategy persistence.Strategy) *Builder {
	b.cfg.PersistenceEnabled = enabled
	b.cfg.PersistenceStrategy = strategy
	return b
}

func (b *Builder) WithPayloadCodec(codec persistence.PayloadCodec) *Builder {
	b.cfg.PayloadCodec = codec
	return b
}

func (b *Builder) WithAlertBus(bus *alert.Bus) *Builder {
	b.cfg.Bus = bus
	return b
}

func (b *Builder) WithLogger(logger logging.Logger) *Builder {
	b.cfg.Logger = logger
	return b
}

func (b *Builder) WithMetrics(metrics pool.Metrics) *Builder {
	b.cfg.Metrics = metrics
	return b
}

// Build validates every field and returns the assembled Config, or a
// *ValidationError aggregating every violation found.
func (b *Builder) Build() (*Config, error) {
	var violations []string
	c := b.cfg

	if c.PoolName == "" {
		violations = append(violations, "PoolName must be non-empty")
	}
	if c.MonitoringPeriod <= 0 {
		violations = append(violations, "MonitoringPeriod must be > 0")
	}
	if c.SamplingInterval <= 0 {
		violations = append(violations, "SamplingInterval must be > 0")
	}
	if c.SamplingInterval > c.MonitoringPeriod {
		violations = append(violations, "SamplingInterval must be <= MonitoringPeriod")
	}
	for _, p := range c.LatencyPercentiles {
		if p < 0 || p > 100 {
			violations = append(violations, "LatencyPercentiles entries must be within [0,100]")
			break
		}
	}

	if c.QueueSizeWarningThreshold <= 0 {
		violations = append(violations, "QueueSizeWarningThreshold must be > 0")
	}
	if c.TaskTimeout <= 0 {
		violations = append(violations, "TaskTimeout must be > 0")
	}
	if c.ThreadPoolUsageThreshold < 1 || c.ThreadPoolUsageThreshold > 100 {
		violations = append(violations, "ThreadPoolUsageThreshold must be within [1,100]")
	}

	if c.MinThreads < 0 {
		violations = append(violations, "MinThreads must be >= 0")
	}
	if c.MaxThreads <= 0 {
		violations = append(violations, "MaxThreads must be > 0")
	}
	if c.MinThreads > c.MaxThreads {
		violations = append(violations, "MinThreads must be <= MaxThreads")
	}
	if c.ScalingCheckPeriod <= 0 {
		violations = append(violations, "ScalingCheckPeriod must be > 0")
	}

	if c.PersistenceEnabled && c.PersistenceStrategy == nil {
		violations = append(violations, "PersistenceStrategy is required when PersistenceEnabled is true")
	}

	if c.CorePoolSize < 0 {
		violations = append(violations, "CorePoolSize must be >= 0")
	}
	if c.MaxPoolSize <= 0 {
		violations = append(violations, "MaxPoolSize must be > 0")
	}
	if c.CorePoolSize > c.MaxPoolSize {
		violations = append(violations, "CorePoolSize must be <= MaxPoolSize")
	}
	if c.QueueCapacity <= 0 {
		violations = append(violations, "QueueCapacity must be > 0")
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return &c, nil
}
