// Package ratelimit provides two rate-limiting strategies: a distributed
// fixed-bucket counter limiter backed by any atomic counter (typically the
// tiered cache) and a process-local token bucket. Counter failures fail
// open so a broken backend never blocks traffic.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/provakit/provakit/pkg/observability/logger"
)

const defaultPrefix = "ratelimit"

// Counter is the atomic counter the windowed limiter runs on. Satisfied by
// the cache package's Cache.
type Counter interface {
	Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)
}

// Request identifies one rate-limit check.
type Request struct {
	// Key identifies the caller (IP, user ID, API key).
	Key string
	// Limit is the maximum number of requests per window.
	Limit int
	// Window is the bucket size.
	Window time.Duration
}

// Result reports the decision for a single request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the current bucket rolls over; consumers derive
	// Retry-After and X-RateLimit-Reset from it.
	ResetAt time.Time
}

// Limiter counts requests in fixed time buckets shared across processes
// through the underlying counter.
type Limiter struct {
	counter Counter
	prefix  string
	log     logger.Logger
}

// NewLimiter creates a windowed limiter over the given counter. An empty
// prefix defaults to "ratelimit".
func NewLimiter(counter Counter, prefix string, log logger.Logger) *Limiter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Limiter{counter: counter, prefix: prefix, log: log}
}

// Check increments the caller's bucket and decides whether the request may
// proceed. A counter error fails open: the request is allowed with the full
// remaining budget and the error is logged.
func (l *Limiter) Check(ctx context.Context, req Request) Result {
	windowSecs := int64(req.Window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}

	now := time.Now()
	bucket := now.Unix() / windowSecs
	resetAt := time.Unix((bucket+1)*windowSecs, 0)

	// The extra second keeps the bucket readable briefly past its boundary.
	key := fmt.Sprintf("%s:%s:%d", l.prefix, req.Key, bucket)
	count, err := l.counter.Increment(ctx, key, 1, time.Duration(windowSecs)*time.Second+time.Second)
	if err != nil {
		l.log.Error("rate limit counter unavailable, failing open", "key", req.Key, "error", err)
		recordRateLimitDecision("error")
		return Result{Allowed: true, Limit: req.Limit, Remaining: req.Limit, ResetAt: resetAt}
	}

	remaining := req.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= int64(req.Limit)
	if allowed {
		recordRateLimitDecision("allowed")
	} else {
		recordRateLimitDecision("rejected")
	}

	return Result{
		Allowed:   allowed,
		Limit:     req.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
