// Package logging defines the structured logging seam used throughout enginepool.
//
// The interface mirrors the small Debug/Info/Warn/Error shape common to worker-pool
// libraries so callers can plug in whatever backend they already run (zap, logrus,
// a test spy) without enginepool importing a concrete framework at every call site.
package logging

import "go.uber.org/zap"

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// F creates a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the structured logging interface accepted by every enginepool component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// NoOpLogger discards everything. Useful in tests and as a safe zero value.
type NoOpLogger struct{}

// NewNoOpLogger returns a Logger that discards all messages.
func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}

// ZapLogger adapts *zap.Logger to the Logger interface.
type ZapLogger struct {
	base *zap.Logger
}

// NewZapLogger wraps an existing *zap.Logger. If base is nil, zap.NewNop() is used.
func NewZapLogger(base *zap.Logger) *ZapLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapLogger{base: base}
}

// NewProductionZapLogger builds a ZapLogger backed by zap's production config.
// Components that are given no Logger use NoOpLogger, not this one.
func NewProductionZapLogger() *ZapLogger {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return &ZapLogger{base: base}
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

func (l *ZapLogger) Debug(msg string, fields ...Field) { l.base.Debug(msg, toZapFields(fields)...) }
func (l *ZapLogger) Info(msg string, fields ...Field)  { l.base.Info(msg, toZapFields(fields)...) }
func (l *ZapLogger) Warn(msg string, fields ...Field)  { l.base.Warn(msg, toZapFields(fields)...) }
func (l *ZapLogger) Error(msg string, fields ...Field) { l.base.Error(msg, toZapFields(fields)...) }
