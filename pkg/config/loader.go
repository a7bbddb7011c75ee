package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
}

// NewViperLoader creates a new ViperLoader.
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "PROVAKIT")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	l.setDefaults(v, defaults)

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (l *ViperLoader) setDefaults(v *viper.Viper, defaults Config) {
	v.SetDefault("service.name", defaults.Service.Name)
	v.SetDefault("service.environment", defaults.Service.Environment)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("cache.backend", defaults.Cache.Backend)
	v.SetDefault("cache.redis_url", defaults.Cache.RedisURL)
	v.SetDefault("cache.prefix", defaults.Cache.Prefix)
	v.SetDefault("cache.max_conns", defaults.Cache.MaxConns)
	v.SetDefault("cache.operation_timeout", defaults.Cache.OperationTimeout)
	v.SetDefault("cache.sweep_interval", defaults.Cache.SweepInterval)
	v.SetDefault("cache.reconnect_attempts", defaults.Cache.ReconnectAttempts)
	v.SetDefault("cache.reconnect_delay", defaults.Cache.ReconnectDelay)

	v.SetDefault("cron.prefix", defaults.Cron.Prefix)
	v.SetDefault("cron.lock_ttl", defaults.Cron.LockTTL)
	v.SetDefault("cron.skip_window", defaults.Cron.SkipWindow)
	v.SetDefault("cron.secret", defaults.Cron.Secret)
	v.SetDefault("cron.attempt_timeout", defaults.Cron.AttemptTimeout)

	v.SetDefault("retry.max_retries", defaults.Retry.MaxRetries)
	v.SetDefault("retry.initial_delay", defaults.Retry.InitialDelay)
	v.SetDefault("retry.max_delay", defaults.Retry.MaxDelay)
	v.SetDefault("retry.base", defaults.Retry.Base)

	v.SetDefault("ratelimit.prefix", defaults.RateLimit.Prefix)
	v.SetDefault("ratelimit.limit", defaults.RateLimit.Limit)
	v.SetDefault("ratelimit.window", defaults.RateLimit.Window)

	v.SetDefault("breaker.failure_threshold", defaults.Breaker.FailureThreshold)
	v.SetDefault("breaker.reset_timeout", defaults.Breaker.ResetTimeout)
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	v.BindEnv("logging.level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("logging.format", l.prefixedEnv("LOG_FORMAT"))

	v.BindEnv("cache.backend", l.prefixedEnv("CACHE_BACKEND"))
	v.BindEnv("cache.redis_url", l.prefixedEnv("CACHE_REDIS_URL"), l.prefixedEnv("REDIS_URL"))
	v.BindEnv("cache.prefix", l.prefixedEnv("CACHE_PREFIX"))
	v.BindEnv("cache.max_conns", l.prefixedEnv("CACHE_MAX_CONNS"))
	v.BindEnv("cache.operation_timeout", l.prefixedEnv("CACHE_OPERATION_TIMEOUT"))
	v.BindEnv("cache.sweep_interval", l.prefixedEnv("CACHE_SWEEP_INTERVAL"))
	v.BindEnv("cache.reconnect_attempts", l.prefixedEnv("CACHE_RECONNECT_ATTEMPTS"))
	v.BindEnv("cache.reconnect_delay", l.prefixedEnv("CACHE_RECONNECT_DELAY"))

	v.BindEnv("cron.prefix", l.prefixedEnv("CRON_PREFIX"))
	v.BindEnv("cron.lock_ttl", l.prefixedEnv("CRON_LOCK_TTL"))
	v.BindEnv("cron.skip_window", l.prefixedEnv("CRON_SKIP_WINDOW"))
	v.BindEnv("cron.secret", l.prefixedEnv("CRON_SECRET"))
	v.BindEnv("cron.attempt_timeout", l.prefixedEnv("CRON_ATTEMPT_TIMEOUT"))

	v.BindEnv("retry.max_retries", l.prefixedEnv("RETRY_MAX_RETRIES"))
	v.BindEnv("retry.initial_delay", l.prefixedEnv("RETRY_INITIAL_DELAY"))
	v.BindEnv("retry.max_delay", l.prefixedEnv("RETRY_MAX_DELAY"))
	v.BindEnv("retry.base", l.prefixedEnv("RETRY_BASE"))

	v.BindEnv("ratelimit.prefix", l.prefixedEnv("RATELIMIT_PREFIX"))
	v.BindEnv("ratelimit.limit", l.prefixedEnv("RATELIMIT_LIMIT"))
	v.BindEnv("ratelimit.window", l.prefixedEnv("RATELIMIT_WINDOW"))

	v.BindEnv("breaker.failure_threshold", l.prefixedEnv("BREAKER_FAILURE_THRESHOLD"))
	v.BindEnv("breaker.reset_timeout", l.prefixedEnv("BREAKER_RESET_TIMEOUT"))
}

func (l *ViperLoader) prefixedEnv(name string) string {
	if l.envPrefix == "" {
		return name
	}
	return l.envPrefix + "_" + name
}

// Validate checks configuration consistency.
func (l *ViperLoader) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	switch cfg.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(cfg.Cache.RedisURL) == "" {
			return fmt.Errorf("cache.redis_url is required when cache.backend is %q", CacheBackendRedis)
		}
	default:
		return fmt.Errorf("unsupported cache.backend %q", cfg.Cache.Backend)
	}

	if cfg.Cache.OperationTimeout < 0 {
		return fmt.Errorf("cache.operation_timeout cannot be negative")
	}
	if cfg.Cache.ReconnectAttempts < 0 {
		return fmt.Errorf("cache.reconnect_attempts cannot be negative")
	}
	if cfg.Cron.LockTTL <= 0 {
		return fmt.Errorf("cron.lock_ttl must be greater than zero")
	}
	if cfg.Cron.SkipWindow < 0 {
		return fmt.Errorf("cron.skip_window cannot be negative")
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	if cfg.Retry.Base < 1 && cfg.Retry.Base != 0 {
		return fmt.Errorf("retry.base must be at least 1")
	}
	if cfg.RateLimit.Limit <= 0 {
		return fmt.Errorf("ratelimit.limit must be greater than zero")
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be greater than zero")
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be greater than zero")
	}
	if cfg.Breaker.ResetTimeout <= 0 {
		return fmt.Errorf("breaker.reset_timeout must be greater than zero")
	}

	return nil
}
