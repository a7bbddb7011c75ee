package config

import "time"

// Cache backend type constants
const (
	// CacheBackendMemory keeps all entries in-process only
	CacheBackendMemory = "memory"
	// CacheBackendRedis uses Redis with an in-memory fallback mirror
	CacheBackendRedis = "redis"
)

// Config is the root configuration structure for the coordination toolkit.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Cron      CronConfig      `mapstructure:"cron"`
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig selects and tunes the cache backends. Backend selection is an
// explicit setting; an empty RedisURL with Backend=redis is a validation error
// rather than a silent downgrade.
type CacheConfig struct {
	Backend           string        `mapstructure:"backend"`
	RedisURL          string        `mapstructure:"redis_url"`
	Prefix            string        `mapstructure:"prefix"`
	MaxConns          int           `mapstructure:"max_conns"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
}

// CronConfig configures the idempotency guard for scheduled jobs.
type CronConfig struct {
	Prefix         string        `mapstructure:"prefix"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	SkipWindow     time.Duration `mapstructure:"skip_window"`
	Secret         string        `mapstructure:"secret"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// RetryConfig configures default retry behavior for job handlers.
type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Base         float64       `mapstructure:"base"`
}

// RateLimitConfig configures the distributed request limiter.
type RateLimitConfig struct {
	Prefix string        `mapstructure:"prefix"`
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// BreakerConfig configures default circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		Service: ServiceConfig{
			Name:        "provakit",
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Backend:           CacheBackendMemory,
			Prefix:            "provakit",
			MaxConns:          10,
			OperationTimeout:  5 * time.Second,
			SweepInterval:     5 * time.Minute,
			ReconnectAttempts: 5,
			ReconnectDelay:    2 * time.Second,
		},
		Cron: CronConfig{
			Prefix:         "cron",
			LockTTL:        5 * time.Minute,
			SkipWindow:     0,
			AttemptTimeout: 2 * time.Minute,
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Base:         2,
		},
		RateLimit: RateLimitConfig{
			Prefix: "ratelimit",
			Limit:  100,
			Window: time.Minute,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
		},
	}
}
