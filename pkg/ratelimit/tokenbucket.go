package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter is a process-local per-key token bucket. It allows
// burst traffic up to the burst limit while maintaining an average rate of
// requests per second over time. Unlike Limiter it shares no state across
// processes.
type TokenBucketLimiter struct {
	limiters sync.Map   // map[string]*rate.Limiter
	rate     rate.Limit // requests per second
	burst    int
}

// NewTokenBucketLimiter creates a token bucket limiter. With
// requestsPerSecond=10 and burst=20, a caller can make 20 requests
// immediately, then is limited to 10 per second.
func NewTokenBucketLimiter(requestsPerSecond int, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		rate:  rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

// Allow reports whether the request identified by key may proceed. Each key
// maintains its own independent bucket, enabling per-IP or per-user limits.
func (l *TokenBucketLimiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

func (l *TokenBucketLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(l.rate, l.burst)
	actual, _ := l.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}
