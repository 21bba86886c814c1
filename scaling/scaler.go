package scaling

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopherpool/enginepool/alert"
	"github.com/gopherpool/enginepool/logging"
	"github.com/gopherpool/enginepool/stats"
)

// PoolController is the narrow write surface a Scaler needs to apply a
// Command. A pool.Engine implements this without scaling importing pool,
// avoiding an import cycle between the two packages.
type PoolController interface {
	CoreSize() int
	MaxSize() int
	KeepAlive() time.Duration
	QueueCapacity() int

	SetCoreSize(int) error
	SetMaxSize(int) error
	SetKeepAlive(time.Duration) error
	SetQueueCapacity(int) error

	ConfiguredMaxThreads() int
	MinThreads() int
	IsShuttingDown() bool
	PoolName() string
}

// ClampError is returned when applying a Command would violate the pool's
// size invariants, or when the underlying controller refuses a new size.
type ClampError struct {
	Field string
	Value int
	Err   error
}

func (e *ClampError) Error() string {
	return fmt.Sprintf("scaling: clamp %s=%d: %v", e.Field, e.Value, e.Err)
}

func (e *ClampError) Unwrap() error { return e.Err }

// Scaler applies Commands produced by a Strategy to a PoolController under a
// lock and a cooldown, publishing alerts on success or failure.
type Scaler struct {
	strategy    Strategy
	controller  PoolController
	bus         *alert.Bus
	logger      logging.Logger
	checkPeriod time.Duration

	applyMu        sync.Mutex
	lastScalingMs  atomic.Int64
}

// NewScaler creates a Scaler. strategy may be nil, in which case
// AttemptScaling is always a no-op. bus defaults to alert.Global() if nil.
func NewScaler(strategy Strategy, controller PoolController, checkPeriod time.Duration, bus *alert.Bus, logger logging.Logger) *Scaler {
	if bus == nil {
		bus = alert.Global()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Scaler{
		strategy:    strategy,
		controller:  controller,
		bus:         bus,
		logger:      logger,
		checkPeriod: checkPeriod,
	}
}

// AttemptScaling evaluates the configured strategy against snapshot and, if
// it yields adjustments, applies them. It is safe to call concurrently;
// concurrent callers race for the internal try-lock and the loser returns
// immediately without side effects.
func (s *Scaler) AttemptScaling(snapshot stats.PoolSnapshot) {
	if s.strategy == nil {
		return
	}
	if s.controller.IsShuttingDown() {
		return
	}
	if snapshot.PoolSize <= 0 {
		return
	}

	now := time.Now().UnixMilli()
	if now-s.lastScalingMs.Load() < s.checkPeriod.Milliseconds() {
		return
	}

	if !s.applyMu.TryLock() {
		return
	}
	defer s.applyMu.Unlock()

	command, ok := s.strategy.Evaluate(snapshot)
	if !ok || !command.HasAdjustments() {
		return
	}

	beforeCore := s.controller.CoreSize()
	beforeMax := s.controller.MaxSize()
	beforeKeepAlive := s.controller.KeepAlive()

	if err := s.apply(command, beforeCore, beforeMax, beforeKeepAlive); err != nil {
		s.publishFailure(command, beforeCore, beforeMax, beforeKeepAlive, err)
		return
	}

	s.lastScalingMs.Store(now)
	s.publishSuccess(command, beforeCore, beforeMax, beforeKeepAlive)
}

// apply performs the ordered, clamped size mutation described in the
// interface contract's Scaler algorithm: expansion adjusts max before core,
// contraction (or a pure core change) adjusts core before max, and
// keep-alive is always last.
func (s *Scaler) apply(cmd Command, beforeCore, beforeMax int, beforeKeepAlive time.Duration) error {
	newCore := clamp(beforeCore+cmd.CoreSizeDelta, s.controller.MinThreads(), s.controller.ConfiguredMaxThreads())
	newMax := clamp(beforeMax+cmd.MaxSizeDelta, newCore, s.controller.ConfiguredMaxThreads())

	if cmd.MaxSizeDelta > 0 {
		if err := s.controller.SetMaxSize(newMax); err != nil {
			return &ClampError{Field: "maxSize", Value: newMax, Err: err}
		}
		if err := s.controller.SetCoreSize(newCore); err != nil {
			return &ClampError{Field: "coreSize", Value: newCore, Err: err}
		}
	} else {
		if err := s.controller.SetCoreSize(newCore); err != nil {
			return &ClampError{Field: "coreSize", Value: newCore, Err: err}
		}
		if err := s.controller.SetMaxSize(newMax); err != nil {
			return &ClampError{Field: "maxSize", Value: newMax, Err: err}
		}
	}

	if cmd.QueueCapacityDelta != 0 {
		newCap := s.controller.QueueCapacity() + cmd.QueueCapacityDelta
		if newCap < 0 {
			newCap = 0
		}
		if err := s.controller.SetQueueCapacity(newCap); err != nil {
			return &ClampError{Field: "queueCapacity", Value: newCap, Err: err}
		}
	}

	if cmd.KeepAliveDelta != 0 {
		newKeepAlive := beforeKeepAlive + cmd.KeepAliveDelta
		if newKeepAlive < 0 {
			newKeepAlive = 0
		}
		if err := s.controller.SetKeepAlive(newKeepAlive); err != nil {
			return &ClampError{Field: "keepAlive", Value: int(newKeepAlive.Milliseconds()), Err: err}
		}
	}

	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if hi >= lo && v > hi {
		return hi
	}
	return v
}

func (s *Scaler) publishSuccess(cmd Command, beforeCore, beforeMax int, beforeKeepAlive time.Duration) {
	md := alert.Metadata{
		"poolName":     s.controller.PoolName(),
		"oldCoreSize":  beforeCore,
		"newCoreSize":  s.controller.CoreSize(),
		"oldMaxSize":   beforeMax,
		"newMaxSize":   s.controller.MaxSize(),
		"oldKeepAlive": beforeKeepAlive.Milliseconds(),
		"newKeepAlive": s.controller.KeepAlive().Milliseconds(),
		"reason":       cmd.Reason,
	}
	s.bus.Publish(fmt.Sprintf("Pool scaled: %s", cmd.Reason), alert.LevelInfo, alert.KindScaling, md)
}

func (s *Scaler) publishFailure(cmd Command, beforeCore, beforeMax int, beforeKeepAlive time.Duration, err error) {
	md := alert.Metadata{
		"poolName":     s.controller.PoolName(),
		"oldCoreSize":  beforeCore,
		"newCoreSize":  s.controller.CoreSize(),
		"oldMaxSize":   beforeMax,
		"newMaxSize":   s.controller.MaxSize(),
		"oldKeepAlive": beforeKeepAlive.Milliseconds(),
		"newKeepAlive": s.controller.KeepAlive().Milliseconds(),
		"reason":       cmd.Reason,
		"error":        err.Error(),
	}
	s.logger.Error("scaling failed", logging.F("error", err), logging.F("reason", cmd.Reason))
	s.bus.Publish(fmt.Sprintf("Pool scaling failed: %v", err), alert.LevelError, alert.KindScaling, md)
}
