package logger

import (
	"context"
)

// Logger defines the interface for structured logging throughout the toolkit.
// All log methods accept a message string followed by key-value pairs for structured fields.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info-level message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning-level message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error-level message with optional key-value pairs
	Error(msg string, args ...any)

	// With creates a child logger with additional key-value pairs that will be
	// included in all subsequent log entries
	With(args ...any) Logger

	// WithContext creates a child logger that extracts the job name from context
	WithContext(ctx context.Context) Logger
}

type contextKey string

// jobNameKey carries the logical job name across handler boundaries so that
// every log line emitted during a job run can be correlated.
const jobNameKey contextKey = "job_name"

// ContextWithJob returns a context carrying the job name for log correlation.
func ContextWithJob(ctx context.Context, jobName string) context.Context {
	return context.WithValue(ctx, jobNameKey, jobName)
}

// JobFromContext extracts the job name previously stored with ContextWithJob.
func JobFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if name, ok := ctx.Value(jobNameKey).(string); ok {
		return name
	}
	return ""
}
