// Package poolconfig provides validated, builder-style construction of
// every configuration surface used by an enginepool worker pool.
package poolconfig

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gopherpool/enginepool/alert"
	"github.com/gopherpool/enginepool/logging"
	"github.com/gopherpool/enginepool/monitor"
	"github.com/gopherpool/enginepool/persistence"
	"github.com/gopherpool/enginepool/pool"
	"github.com/gopherpool/enginepool/scaling"
	"github.com/gopherpool/enginepool/stats"
)

// Config is the fully validated configuration surface for one worker pool.
type Config struct {
	// Monitoring
	MonitoringPeriod      time.Duration
	SamplingInterval      time.Duration
	EnableDetailedMetrics bool
	EnableQueueMetrics    bool
	EnableTaskMetrics     bool
	EnableThreadMetrics   bool
	EnableLatencyMetrics  bool
	EnableRejectionMetrics bool
	LatencyPercentiles    []int

	// Alerts
	QueueSizeWarningThreshold int
	TaskTimeout               time.Duration
	ThreadPoolUsageThreshold  int
	MinimumAlertLevel         alert.Level

	// Scaling
	Strategy           scaling.Strategy
	ScalingCheckPeriod time.Duration
	MinThreads         int
	MaxThreads         int

	// Persistence
	PersistenceEnabled  bool
	PersistenceStrategy persistence.Strategy
	PayloadCodec        persistence.PayloadCodec

	// Pool
	CorePoolSize  int
	MaxPoolSize   int
	KeepAliveTime time.Duration
	QueueCapacity int
	PoolName      string

	Bus     *alert.Bus
	Logger  logging.Logger
	Metrics pool.Metrics
}

// ValidationError aggregates every builder violation found at Build() time,
// rather than failing on the first one, so callers can fix a whole config
// in one pass.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("poolconfig: invalid configuration: %s", strings.Join(e.Violations, "; "))
}

// DefaultConfig returns the interface contract's documented defaults (§6).
func DefaultConfig() Config {
	return Config{
		MonitoringPeriod:          5 * time.Second,
		SamplingInterval:          time.Second,
		EnableDetailedMetrics:     true,
		EnableQueueMetrics:        true,
		EnableTaskMetrics:         true,
		EnableThreadMetrics:       true,
		EnableLatencyMetrics:      true,
		EnableRejectionMetrics:    true,
		LatencyPercentiles:        []int{50, 75, 90, 95, 99},
		QueueSizeWarningThreshold: 1000,
		TaskTimeout:               60 * time.Second,
		ThreadPoolUsageThreshold:  80,
		MinimumAlertLevel:         alert.LevelWarning,
		ScalingCheckPeriod:        30 * time.Second,
		MinThreads:                1,
		MaxThreads:                2 * runtime.NumCPU(),
		CorePoolSize:              0,
		MaxPoolSize:               2 * runtime.NumCPU(),
		QueueCapacity:             1000,
		PoolName:                  "enginepool",
	}
}

// NewEngine translates a validated Config into a ready-to-Start pool.Engine.
func (c *Config) NewEngine() *pool.Engine {
	s := stats.New(c.LatencyPercentiles, 0)

	var persistenceStrategy persistence.Strategy
	if c.PersistenceEnabled {
		persistenceStrategy = c.PersistenceStrategy
	} else {
		persistenceStrategy = persistence.NewNoopStrategy()
	}

	monCfg := monitor.Config{
		MonitoringPeriod:          c.MonitoringPeriod,
		EnableDetailedMetrics:     c.EnableDetailedMetrics,
		EnableThreadMetrics:       c.EnableThreadMetrics,
		EnableQueueMetrics:        c.EnableQueueMetrics,
		ThreadPoolUsageThreshold:  c.ThreadPoolUsageThreshold,
		QueueSizeWarningThreshold: c.QueueSizeWarningThreshold,
		MinimumAlertLevel:         c.MinimumAlertLevel,
	}

	return pool.NewEngine(pool.EngineConfig{
		Name:                 c.PoolName,
		CoreSize:             c.CorePoolSize,
		MaxSize:              c.MaxPoolSize,
		ConfiguredMaxThreads: c.MaxThreads,
		MinThreads:           c.MinThreads,
		KeepAlive:            c.KeepAliveTime,
		QueueCapacity:        c.QueueCapacity,
		Stats:                s,
		PersistenceStrategy:  persistenceStrategy,
		PayloadCodec:         c.PayloadCodec,
		ScalingStrategy:      c.Strategy,
		ScalingCheckPeriod:   c.ScalingCheckPeriod,
		MonitorConfig:        monCfg,
		Bus:                  c.Bus,
		Logger:               c.Logger,
		Metrics:              c.Metrics,
	})
}
