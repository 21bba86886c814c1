// Package pool implements the tracked task, priority persistent queue, and
// worker engine that make up the enhanced worker pool.
package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gopherpool/enginepool/stats"
)

// DefaultPriority is the priority assigned to work submitted through
// Execute, which does not carry an explicit priority.
const DefaultPriority = 5

// Payload is the user work unit wrapped by a TrackedTask. Go has no
// checked exceptions, so failure is a returned error; a panicking payload
// is converted into a failure outcome by Run's recover-guarded wrapper.
type Payload func(ctx context.Context) error

// ErrUnreplayableTask is returned by the payload of a TrackedTask that was
// reconstructed from a persisted image. Arbitrary Go closures cannot be
// deserialized, so a reloaded task carries a replay marker instead of its
// original work; see the persistence Open Questions in DESIGN.md.
var ErrUnreplayableTask = errors.New("pool: task payload cannot be replayed after persistence reload")

// replayPayload returns a Payload that always fails with ErrUnreplayableTask,
// identifying which persisted task it stood in for.
func replayPayload(taskID string) Payload {
	return func(ctx context.Context) error {
		return fmt.Errorf("%w: task %s", ErrUnreplayableTask, taskID)
	}
}

// TrackedTask is an immutable work unit carrying an id, submit timestamp,
// priority, and payload. Comparable by (priority, submitTimeMs) ascending,
// per the queue's ordering contract.
type TrackedTask struct {
	id           string
	submitTimeMs int64
	priority     int
	payload      Payload
}

// NewTrackedTask wraps payload with a UUID v4 identity and the current
// wall-clock submit time.
func NewTrackedTask(priority int, payload Payload) *TrackedTask {
	return &TrackedTask{
		id:           uuid.NewString(),
		submitTimeMs: time.Now().UnixMilli(),
		priority:     priority,
		payload:      payload,
	}
}

// ID returns the task's opaque unique identifier.
func (t *TrackedTask) ID() string { return t.id }

// SubmitTimeMs returns the wall-clock millisecond timestamp at construction.
func (t *TrackedTask) SubmitTimeMs() int64 { return t.submitTimeMs }

// Priority returns the task's priority; lower values are more urgent.
func (t *TrackedTask) Priority() int { return t.priority }

// Run measures wait time (now minus submit time) and execution time around
// invoking the payload, recording both plus the outcome on s. A panic in
// the payload is recovered and converted into a failure outcome so a single
// bad task never takes down its worker goroutine.
func (t *TrackedTask) Run(ctx context.Context, s *stats.Stats) (err error) {
	wait := time.Since(time.UnixMilli(t.submitTimeMs))
	s.RecordWaitTime(wait)

	start := time.Now()
	defer func() {
		s.RecordExecutionTime(time.Since(start))
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: task %s panicked: %v", t.id, r)
		}
		if err != nil {
			s.RecordFailure()
		} else {
			s.RecordCompletion()
		}
	}()

	err = t.payload(ctx)
	return err
}
