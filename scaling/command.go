// Package scaling implements the pluggable scaling strategies and the
// cooldown-guarded Scaler that applies their commands to a pool.
package scaling

import "time"

// Command describes desired deltas to apply to a pool. A Command never
// mutates anything on its own; it is a pure value produced by a Strategy
// and consumed by the Scaler.
type Command struct {
	ThreadDelta        int
	CoreSizeDelta      int
	MaxSizeDelta       int
	QueueCapacityDelta int
	KeepAliveDelta     time.Duration
	Reason             string
}

// HasAdjustments reports whether any delta is non-zero.
func (c Command) HasAdjustments() bool {
	return c.ThreadDelta != 0 || c.CoreSizeDelta != 0 || c.MaxSizeDelta != 0 ||
		c.QueueCapacityDelta != 0 || c.KeepAliveDelta != 0
}
