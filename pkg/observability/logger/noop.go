package logger

import "context"

// NoopLogger discards all log output. Intended for tests and for callers that
// have not configured logging yet.
type NoopLogger struct{}

// NewNoopLogger creates a logger that drops everything.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(string, ...any) {}
func (l *NoopLogger) Info(string, ...any)  {}
func (l *NoopLogger) Warn(string, ...any)  {}
func (l *NoopLogger) Error(string, ...any) {}

func (l *NoopLogger) With(...any) Logger                 { return l }
func (l *NoopLogger) WithContext(context.Context) Logger { return l }
