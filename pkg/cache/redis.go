package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/provakit/provakit/pkg/observability/logger"
)

const (
	defaultRedisPrefix           = "provakit"
	defaultRedisOperationTimeout = 5 * time.Second
	scanBatchSize                = 100
)

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	URL              string
	MaxConns         int
	OperationTimeout time.Duration
	Prefix           string
}

func (c *RedisConfig) normalize() {
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = defaultRedisPrefix
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultRedisOperationTimeout
	}
}

// RedisStore persists cache entries in Redis. It is the shared backend that
// coordinates cache state, counters, and locks across process instances.
type RedisStore struct {
	client *redis.Client
	log    logger.Logger
	config RedisConfig
}

// NewRedisStore creates a Redis-backed store. Connectivity is not verified
// here; callers decide whether to ping eagerly (see Tiered's construction).
func NewRedisStore(cfg RedisConfig, log logger.Logger) (*RedisStore, error) {
	if log == nil {
		return nil, cacheError(ErrInvalidArgument, "logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, cacheError(ErrInvalidArgument, "redis url is required")
	}
	cfg.normalize()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(cacheError(ErrInvalidArgument, "parse redis url failed"), err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	opts.ReadTimeout = cfg.OperationTimeout
	opts.WriteTimeout = cfg.OperationTimeout

	return &RedisStore{
		client: redis.NewClient(opts),
		log:    log,
		config: cfg,
	}, nil
}

// Get loads a raw entry. Returns ErrMiss when the key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	raw, err := s.client.Get(opCtx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, errors.Join(cacheError(ErrBackendUnavailable, "get failed"), err)
	}
	return raw, nil
}

// Set stores a raw entry with TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.client.Set(opCtx, s.key(key), value, ttl).Err(); err != nil {
		return errors.Join(cacheError(ErrBackendUnavailable, "set failed"), err)
	}
	return nil
}

// SetIfNotExists stores the entry only when the key is absent, atomically
// (SET NX PX). Returns true when this call created the entry.
func (s *RedisStore) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	created, err := s.client.SetNX(opCtx, s.key(key), value, ttl).Result()
	if err != nil {
		return false, errors.Join(cacheError(ErrBackendUnavailable, "setnx failed"), err)
	}
	return created, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.client.Del(opCtx, s.key(key)).Err(); err != nil {
		return errors.Join(cacheError(ErrBackendUnavailable, "delete failed"), err)
	}
	return nil
}

// DeletePattern removes every key matching the glob pattern using a paginated
// SCAN so large keyspaces are never blocked on a single command. Returns the
// number of keys deleted.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	match := s.key(pattern)
	deleted := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(opCtx, cursor, match, scanBatchSize).Result()
		if err != nil {
			return deleted, errors.Join(cacheError(ErrBackendUnavailable, "scan failed"), err)
		}
		if len(keys) > 0 {
			removed, err := s.client.Del(opCtx, keys...).Result()
			if err != nil {
				return deleted, errors.Join(cacheError(ErrBackendUnavailable, "delete failed"), err)
			}
			deleted += int(removed)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Exists reports whether the key is present.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	count, err := s.client.Exists(opCtx, s.key(key)).Result()
	if err != nil {
		return false, errors.Join(cacheError(ErrBackendUnavailable, "exists failed"), err)
	}
	return count > 0, nil
}

// TTL returns the remaining lifetime of the key. Redis conventions apply:
// TTLNone for a key without expiry, TTLMissing for an absent key.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	ttl, err := s.client.TTL(opCtx, s.key(key)).Result()
	if err != nil {
		return TTLMissing, errors.Join(cacheError(ErrBackendUnavailable, "ttl failed"), err)
	}
	return ttl, nil
}

// IncrBy atomically adds amount to the counter at key. The TTL is applied
// only when this call created the counter, so a window's expiry is anchored
// to its first increment.
func (s *RedisStore) IncrBy(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	fullKey := s.key(key)
	count, err := s.client.IncrBy(opCtx, fullKey, amount).Result()
	if err != nil {
		return 0, errors.Join(cacheError(ErrBackendUnavailable, "incrby failed"), err)
	}
	if count == amount && ttl > 0 {
		if err := s.client.Expire(opCtx, fullKey, ttl).Err(); err != nil {
			s.log.Warn("cache counter expire failed", "key", key, "error", err)
		}
	}
	return count, nil
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.client.Ping(opCtx).Err(); err != nil {
		return errors.Join(cacheError(ErrBackendUnavailable, "ping failed"), err)
	}
	return nil
}

// Close closes the underlying client connections.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.config.OperationTimeout)
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:%s", strings.TrimRight(s.config.Prefix, ":"), key)
}
