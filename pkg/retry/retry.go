// Package retry provides a bounded exponential-backoff executor for fallible
// operations, and a chunked batch processor built on top of it.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultBase         = 2.0

	// jitterFactor is the maximum fraction of the computed delay added as
	// random jitter, spreading out concurrent retriers.
	jitterFactor = 0.3
)

// Options controls retry behavior.
type Options struct {
	// MaxRetries is the number of retries after the first attempt; total
	// attempts = MaxRetries + 1.
	MaxRetries int
	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the computed backoff (before jitter is added).
	MaxDelay time.Duration
	// Base is the exponential growth factor between retries.
	Base float64
	// OnRetry is invoked before each backoff sleep with the 1-based number
	// of the attempt that just failed, its error, and the upcoming delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (o *Options) normalize() {
	if o.MaxRetries < 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.Base < 1 {
		o.Base = DefaultBase
	}
}

// Result carries the outcome of a retried operation.
type Result[T any] struct {
	Success  bool
	Data     T
	Err      error
	Attempts int
	Duration time.Duration
}

// WithRetry runs op until it succeeds or the retry budget is exhausted.
// Failures are retried after an exponentially growing, jittered delay; the
// terminal error is reported in the Result rather than returned, so callers
// always receive attempt and duration accounting. Context cancellation stops
// both in-between sleeps and further attempts.
func WithRetry[T any](ctx context.Context, op func(context.Context) (T, error), opts Options) Result[T] {
	opts.normalize()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	var lastErr error
	for attempt := 0; ; attempt++ {
		data, err := op(ctx)
		if err == nil {
			return Result[T]{
				Success:  true,
				Data:     data,
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}
		lastErr = err

		if attempt == opts.MaxRetries {
			return Result[T]{
				Err:      lastErr,
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}

		delay := backoffDelay(attempt, opts)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return Result[T]{
				Err:      errors.Join(lastErr, err),
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}
	}
}

// Retryable wraps op so that it retries internally and exposes plain
// (value, error) semantics again: the data on success, the terminal error
// after exhaustion. A drop-in replacement for the unwrapped function.
func Retryable[T any](op func(context.Context) (T, error), opts Options) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		result := WithRetry(ctx, op, opts)
		if result.Success {
			return result.Data, nil
		}
		var zero T
		return zero, result.Err
	}
}

// Do retries a valueless operation.
func Do(ctx context.Context, op func(context.Context) error, opts Options) Result[struct{}] {
	return WithRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts)
}

// backoffDelay computes the capped exponential delay for the given 0-based
// attempt, plus jitter in [0, jitterFactor*delay). The returned value never
// exceeds MaxDelay*(1+jitterFactor).
func backoffDelay(attempt int, opts Options) time.Duration {
	base := float64(opts.InitialDelay) * math.Pow(opts.Base, float64(attempt))
	if base > float64(opts.MaxDelay) {
		base = float64(opts.MaxDelay)
	}
	jitter := rand.Float64() * jitterFactor * base
	return time.Duration(base + jitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
