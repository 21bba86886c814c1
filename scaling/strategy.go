package scaling

import (
	"fmt"
	"math"
	"time"

	"github.com/gopherpool/enginepool/stats"
)

// Strategy is a pure function from a Pool Snapshot to a Command, or no
// command at all. Implementations never mutate the pool; they only
// describe intent. Prefer these tagged, interchangeable variants over deep
// inheritance, per the interface contract's re-architecture guidance.
type Strategy interface {
	Evaluate(snapshot stats.PoolSnapshot) (Command, bool)
}

// LoadBasedConfig configures LoadBasedStrategy.
type LoadBasedConfig struct {
	HighThreshold  float64 // load above which the pool scales up
	LowThreshold   float64 // load below which the pool scales down
	ScaleUpBy      int
	ScaleDownBy    int
	KeepAliveAdj   int64 // milliseconds
}

// LoadBasedStrategy scales on active/poolSize thread utilization.
type LoadBasedStrategy struct {
	cfg LoadBasedConfig
}

func NewLoadBasedStrategy(cfg LoadBasedConfig) *LoadBasedStrategy {
	return &LoadBasedStrategy{cfg: cfg}
}

func (s *LoadBasedStrategy) Evaluate(snap stats.PoolSnapshot) (Command, bool) {
	if snap.PoolSize <= 0 {
		return Command{}, false
	}
	load := float64(snap.ActiveThreads) / float64(snap.PoolSize)

	if load > s.cfg.HighThreshold && snap.PoolSize < snap.MaxPoolSize {
		return Command{
			ThreadDelta:        s.cfg.ScaleUpBy,
			CoreSizeDelta:      s.cfg.ScaleUpBy,
			MaxSizeDelta:       2 * s.cfg.ScaleUpBy,
			KeepAliveDelta:     -time.Duration(s.cfg.KeepAliveAdj) * time.Millisecond,
			Reason:             fmt.Sprintf("High load detected (%.0f%% > %.0f%%)", load*100, s.cfg.HighThreshold*100),
		}, true
	}

	if load < s.cfg.LowThreshold && snap.MaxPoolSize > snap.PoolSize {
		return Command{
			ThreadDelta:    -s.cfg.ScaleDownBy,
			CoreSizeDelta:  -s.cfg.ScaleDownBy,
			KeepAliveDelta: time.Duration(s.cfg.KeepAliveAdj) * time.Millisecond,
			Reason:         fmt.Sprintf("Low load detected (%.0f%% < %.0f%%)", load*100, s.cfg.LowThreshold*100),
		}, true
	}

	return Command{}, false
}

// QueueBasedConfig configures QueueBasedStrategy.
type QueueBasedConfig struct {
	QueueThreshold      int
	ScaleUpBy           int
	CapacityGrowthRatio float64 // additional queue capacity = floor(queueSize * ratio)
}

// QueueBasedStrategy scales up when the queue backs up beyond a threshold.
type QueueBasedStrategy struct {
	cfg QueueBasedConfig
}

func NewQueueBasedStrategy(cfg QueueBasedConfig) *QueueBasedStrategy {
	return &QueueBasedStrategy{cfg: cfg}
}

func (s *QueueBasedStrategy) Evaluate(snap stats.PoolSnapshot) (Command, bool) {
	if snap.QueueSize > s.cfg.QueueThreshold && snap.PoolSize < snap.MaxPoolSize {
		return Command{
			ThreadDelta:        s.cfg.ScaleUpBy,
			CoreSizeDelta:      s.cfg.ScaleUpBy,
			MaxSizeDelta:       2 * s.cfg.ScaleUpBy,
			QueueCapacityDelta: int(math.Floor(float64(snap.QueueSize) * s.cfg.CapacityGrowthRatio)),
			Reason:             fmt.Sprintf("Queue backlog detected (%d > %d)", snap.QueueSize, s.cfg.QueueThreshold),
		}, true
	}
	return Command{}, false
}

// CompositeStrategy runs children in order and sums the deltas of every
// child that produced a command. Returns no command if every child
// abstained.
type CompositeStrategy struct {
	children []Strategy
}

func NewCompositeStrategy(children ...Strategy) *CompositeStrategy {
	return &CompositeStrategy{children: children}
}

func (s *CompositeStrategy) Evaluate(snap stats.PoolSnapshot) (Command, bool) {
	var combined Command
	var reasons []string
	matched := false

	for _, child := range s.children {
		cmd, ok := child.Evaluate(snap)
		if !ok {
			continue
		}
		matched = true
		combined.ThreadDelta += cmd.ThreadDelta
		combined.CoreSizeDelta += cmd.CoreSizeDelta
		combined.MaxSizeDelta += cmd.MaxSizeDelta
		combined.QueueCapacityDelta += cmd.QueueCapacityDelta
		combined.KeepAliveDelta += cmd.KeepAliveDelta
		if cmd.Reason != "" {
			reasons = append(reasons, cmd.Reason)
		}
	}

	if !matched {
		return Command{}, false
	}

	combined.Reason = "Combined: " + joinReasons(reasons)
	return combined, true
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += " + "
		}
		out += r
	}
	return out
}
