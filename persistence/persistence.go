// Package persistence defines the abstract save/load/cleanup contract used
// to durably snapshot a priority queue's contents, plus no-op, file and
// database (database/sql) implementations.
package persistence

import (
	"context"
	"fmt"
)

// SerializableTask is the wire projection of a pool.TrackedTask: enough to
// reconstruct queue order and identity, plus an opaque payload blob produced
// by a PayloadCodec.
type SerializableTask struct {
	TaskID       string
	SubmitTimeMs int64
	Priority     int
	Blob         []byte
}

// Strategy abstracts the durable backing store for a priority queue's image.
//
// Save replaces any prior image (never appends); implementations must be
// crash-safe enough that either the prior or the new image is readable on
// the next Load. Load returns tasks in persisted order, or an empty slice
// if no image exists. Cleanup removes the image and is idempotent.
type Strategy interface {
	Save(ctx context.Context, tasks []SerializableTask) error
	Load(ctx context.Context) ([]SerializableTask, error)
	Cleanup(ctx context.Context) error
}

// Error distinguishes persistence failures (I/O, database errors) from
// other error classes so callers can choose to continue with an empty queue.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// PayloadCodec serializes/deserializes the opaque payload blob carried by a
// SerializableTask. JSONCodec is the default; callers with binary payloads
// can supply their own.
type PayloadCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, target any) error
}

// NoopStrategy discards everything: Save and Cleanup are no-ops, Load always
// returns an empty slice. This is the default when persistence is disabled.
type NoopStrategy struct{}

func NewNoopStrategy() *NoopStrategy { return &NoopStrategy{} }

func (NoopStrategy) Save(ctx context.Context, tasks []SerializableTask) error { return nil }
func (NoopStrategy) Load(ctx context.Context) ([]SerializableTask, error)    { return nil, nil }
func (NoopStrategy) Cleanup(ctx context.Context) error                       { return nil }
