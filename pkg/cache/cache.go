// Package cache provides a tiered key-value cache: a shared Redis backend
// fronted by an in-process fallback store. Every read/write operation
// degrades to the fallback when the remote backend is unreachable, so cache
// consumers never fail solely because the coordination substrate is down.
package cache

import (
	"context"
	"time"
)

// TTL sentinel values, following Redis conventions.
const (
	// TTLNone means the key exists but carries no tracked expiry.
	TTLNone = -1 * time.Second
	// TTLMissing means the key is absent.
	TTLMissing = -2 * time.Second
)

// Cache is the programmatic surface consumed by job handlers, the idempotency
// guard, and the rate limiter. Values are serialized as JSON.
type Cache interface {
	// Get loads the value at key into dest. Returns false on miss or expiry.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores value under key with the given TTL. The in-memory mirror is
	// always written; a remote write failure alone never fails the call.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// SetIfNotExists stores value only when key is absent. On the remote
	// backend this is atomic (SET NX). Unlike the other operations it
	// propagates remote errors instead of degrading, so coordination callers
	// can make their own fail-open decision.
	SetIfNotExists(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)

	// Delete removes key from both backends. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// InvalidatePattern deletes every key matching the glob pattern
	// ('*' = any run, '?' = single character) from both backends and returns
	// the total number of deletions.
	InvalidatePattern(ctx context.Context, pattern string) (int, error)

	// Has reports whether key is present and unexpired.
	Has(ctx context.Context, key string) bool

	// TTL returns the remaining lifetime of key, TTLNone for a key without
	// expiry, TTLMissing for an absent key.
	TTL(ctx context.Context, key string) time.Duration

	// Increment atomically adds amount to the counter at key; the TTL applies
	// only when the counter is created. In fallback mode the counter is
	// consistent within this process only.
	Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)

	// HealthCheck verifies remote backend connectivity. Memory-only caches
	// are always healthy.
	HealthCheck(ctx context.Context) error

	// Close stops background workers and releases backend connections.
	Close() error
}

// populateTimeout bounds the async cache population spawned by GetOrCompute.
const populateTimeout = 5 * time.Second

// GetOrCompute implements the cache-aside pattern: on a hit the cached value
// is returned; on a miss the loader runs and its result is returned to the
// caller immediately while the cache is populated asynchronously,
// best-effort. A population failure never reaches the caller.
func GetOrCompute[T any](ctx context.Context, c Cache, key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	var cached T
	if found, err := c.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	value, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	go func() {
		populateCtx, cancel := context.WithTimeout(context.Background(), populateTimeout)
		defer cancel()
		_ = c.Set(populateCtx, key, value, ttl)
	}()

	return value, nil
}
