package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/provakit/provakit/pkg/config"
	"github.com/provakit/provakit/pkg/observability/logger"
)

const (
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = 2 * time.Second

	// defaultCounterTTL bounds fallback counters created without an explicit TTL.
	defaultCounterTTL = 24 * time.Hour
)

// RemoteStore is the shared backend behind the tiered cache. *RedisStore is
// the production implementation; tests substitute fakes.
type RemoteStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	IncrBy(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and tunes the cache backends. Backend choice is explicit;
// the constructor never inspects the environment.
type Config struct {
	// Backend is config.CacheBackendMemory or config.CacheBackendRedis.
	Backend string
	// Redis configures the remote backend when Backend is redis.
	Redis RedisConfig
	// SweepInterval is how often the fallback store removes expired entries.
	SweepInterval time.Duration
	// ReconnectAttempts caps background reconnection tries after a failed
	// initial ping. Once exhausted the process stays memory-only.
	ReconnectAttempts int
	// ReconnectDelay is the initial delay between reconnection tries; it
	// doubles after every failed attempt.
	ReconnectDelay time.Duration
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.Backend) == "" {
		c.Backend = config.CacheBackendMemory
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = defaultReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
}

// Tiered implements Cache over a remote store and an in-memory mirror.
type Tiered struct {
	remote RemoteStore
	memory *MemoryStore
	log    logger.Logger

	connected atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a tiered cache for the configured backend. In redis mode the
// initial connection is verified once; on failure the cache starts in
// fallback-only mode and a bounded background loop keeps trying to reconnect.
func New(cfg Config, log logger.Logger) (*Tiered, error) {
	if log == nil {
		return nil, cacheError(ErrInvalidArgument, "logger is required")
	}
	cfg.normalize()

	t := &Tiered{
		memory: NewMemoryStore(cfg.SweepInterval),
		log:    log,
		done:   make(chan struct{}),
	}

	if cfg.Backend == config.CacheBackendMemory {
		return t, nil
	}

	remote, err := NewRedisStore(cfg.Redis, log)
	if err != nil {
		t.memory.Close()
		return nil, err
	}
	t.remote = remote

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Redis.OperationTimeout)
	defer cancel()
	if err := remote.Ping(pingCtx); err != nil {
		log.Warn("cache remote backend unreachable, starting in fallback mode", "error", err)
		go t.reconnectLoop(cfg.ReconnectAttempts, cfg.ReconnectDelay)
	} else {
		t.connected.Store(true)
		log.Info("cache remote backend connected")
	}

	return t, nil
}

// NewTieredFromRemote wires a tiered cache around an existing remote store.
// Used by tests and by callers that manage the client themselves.
func NewTieredFromRemote(remote RemoteStore, sweepInterval time.Duration, log logger.Logger) *Tiered {
	t := &Tiered{
		remote: remote,
		memory: NewMemoryStore(sweepInterval),
		log:    log,
		done:   make(chan struct{}),
	}
	t.connected.Store(remote != nil)
	return t
}

// Get implements Cache. A remote error falls through to the fallback store.
func (t *Tiered) Get(ctx context.Context, key string, dest any) (bool, error) {
	if t.closed.Load() {
		return false, ErrClosed
	}

	if t.remoteReady() {
		raw, err := t.remote.Get(ctx, key)
		switch {
		case err == nil:
			recordCacheHit("remote")
			return true, json.Unmarshal(raw, dest)
		case errors.Is(err, ErrMiss):
			// fall through to the mirror; a remote miss with a surviving
			// memory entry means the remote write was lost.
		default:
			recordCacheFallback("get")
			t.log.Warn("cache remote get failed, using fallback", "key", key, "error", err)
		}
	}

	raw, ok := t.memory.Get(key)
	if !ok {
		recordCacheMiss()
		return false, nil
	}
	recordCacheHit("memory")
	return true, json.Unmarshal(raw, dest)
}

// Set implements Cache. The memory mirror is always written; the remote write
// is best-effort.
func (t *Tiered) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if t.closed.Load() {
		return ErrClosed
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return cacheError(ErrInvalidArgument, "marshal value failed")
	}

	t.memory.Set(key, raw, ttl)

	if t.remoteReady() {
		if err := t.remote.Set(ctx, key, raw, ttl); err != nil {
			recordCacheFallback("set")
			t.log.Warn("cache remote set failed, memory write retained", "key", key, "error", err)
		}
	}
	return nil
}

// SetIfNotExists implements Cache. Remote errors are returned to the caller
// rather than degraded, so coordination logic (the cron guard) can decide to
// fail open explicitly.
func (t *Tiered) SetIfNotExists(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if t.closed.Load() {
		return false, ErrClosed
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return false, cacheError(ErrInvalidArgument, "marshal value failed")
	}

	if t.remoteReady() {
		created, err := t.remote.SetIfNotExists(ctx, key, raw, ttl)
		if err != nil {
			return false, err
		}
		if created {
			t.memory.Set(key, raw, ttl)
		}
		return created, nil
	}

	return t.memory.SetIfNotExists(key, raw, ttl), nil
}

// Delete implements Cache. Remote failures are logged, not surfaced; the
// operation is idempotent.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.memory.Delete(key)

	if t.remoteReady() {
		if err := t.remote.Delete(ctx, key); err != nil {
			recordCacheFallback("delete")
			t.log.Warn("cache remote delete failed", "key", key, "error", err)
		}
	}
	return nil
}

// InvalidatePattern implements Cache. Counts from both backends are summed;
// a key present in both is counted twice.
func (t *Tiered) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}

	deleted, err := t.memory.DeletePattern(pattern)
	if err != nil {
		return 0, err
	}

	if t.remoteReady() {
		remoteDeleted, err := t.remote.DeletePattern(ctx, pattern)
		deleted += remoteDeleted
		if err != nil {
			recordCacheFallback("invalidate")
			t.log.Warn("cache remote invalidation incomplete", "pattern", pattern, "error", err)
		}
	}
	return deleted, nil
}

// Has implements Cache.
func (t *Tiered) Has(ctx context.Context, key string) bool {
	if t.closed.Load() {
		return false
	}

	if t.remoteReady() {
		exists, err := t.remote.Exists(ctx, key)
		if err == nil {
			return exists || t.memory.Has(key)
		}
		recordCacheFallback("has")
	}
	return t.memory.Has(key)
}

// TTL implements Cache.
func (t *Tiered) TTL(ctx context.Context, key string) time.Duration {
	if t.closed.Load() {
		return TTLMissing
	}

	if t.remoteReady() {
		ttl, err := t.remote.TTL(ctx, key)
		if err == nil && ttl != TTLMissing {
			return ttl
		}
		if err != nil {
			recordCacheFallback("ttl")
		}
	}
	return t.memory.TTL(key)
}

// Increment implements Cache. On remote failure the counter degrades to the
// per-process fallback; cross-process totals diverge until the remote returns.
func (t *Tiered) Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}
	if ttl <= 0 {
		ttl = defaultCounterTTL
	}

	if t.remoteReady() {
		count, err := t.remote.IncrBy(ctx, key, amount, ttl)
		if err == nil {
			return count, nil
		}
		recordCacheFallback("increment")
		t.log.Warn("cache remote increment failed, counting locally", "key", key, "error", err)
	}
	return t.memory.IncrBy(key, amount, ttl), nil
}

// HealthCheck implements Cache.
func (t *Tiered) HealthCheck(ctx context.Context) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if t.remote == nil {
		return nil
	}
	if !t.connected.Load() {
		return cacheError(ErrBackendUnavailable, "operating in fallback mode")
	}
	return t.remote.Ping(ctx)
}

// Connected reports whether the remote backend is currently in use.
func (t *Tiered) Connected() bool {
	return t.remoteReady()
}

// Close implements Cache. Safe to call more than once.
func (t *Tiered) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)
		t.memory.Close()
		if t.remote != nil {
			err = t.remote.Close()
		}
	})
	return err
}

func (t *Tiered) remoteReady() bool {
	return t.remote != nil && t.connected.Load()
}

func (t *Tiered) reconnectLoop(attempts int, delay time.Duration) {
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-t.done:
			return
		case <-time.After(delay):
		}

		pingCtx, cancel := context.WithTimeout(context.Background(), defaultRedisOperationTimeout)
		err := t.remote.Ping(pingCtx)
		cancel()
		if err == nil {
			t.connected.Store(true)
			recordCacheReconnect("success")
			t.log.Info("cache remote backend reconnected", "attempt", attempt)
			return
		}

		recordCacheReconnect("failure")
		t.log.Warn("cache remote reconnect failed", "attempt", attempt, "error", err)
		delay *= 2
	}
	t.log.Error("cache remote reconnect attempts exhausted, staying in fallback mode", "attempts", attempts)
}
