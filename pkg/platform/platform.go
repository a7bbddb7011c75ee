// Package platform is the composition root: it wires the cache, job guard,
// rate limiter, breaker group and health registry from configuration. Every
// component is constructed and injected; nothing in the toolkit relies on
// package-level singletons.
package platform

import (
	"context"
	"net/http"
	"sync"

	"github.com/provakit/provakit/pkg/cache"
	"github.com/provakit/provakit/pkg/config"
	"github.com/provakit/provakit/pkg/cron"
	"github.com/provakit/provakit/pkg/health"
	"github.com/provakit/provakit/pkg/observability/logger"
	"github.com/provakit/provakit/pkg/observability/metrics"
	"github.com/provakit/provakit/pkg/ratelimit"
	"github.com/provakit/provakit/pkg/resilience"
	"github.com/provakit/provakit/pkg/retry"
)

// Platform owns every wired component. Fields are exported so applications
// can hand them to their own handlers and workers.
type Platform struct {
	Cache    *cache.Tiered
	Guard    *cron.Guard
	Limiter  *ratelimit.Limiter
	Breakers *resilience.BreakerGroup
	Health   *health.Registry
	Log      logger.Logger

	cronCfg       config.CronConfig
	retryDefaults retry.Options
	shutdownOnce  sync.Once
	shutdownErr   error
}

// New wires a platform from configuration. A nil logger gets a no-op one.
func New(cfg *config.Config, log logger.Logger) (*Platform, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}

	tiered, err := cache.New(cache.Config{
		Backend: cfg.Cache.Backend,
		Redis: cache.RedisConfig{
			URL:              cfg.Cache.RedisURL,
			MaxConns:         cfg.Cache.MaxConns,
			OperationTimeout: cfg.Cache.OperationTimeout,
			Prefix:           cfg.Cache.Prefix,
		},
		SweepInterval:     cfg.Cache.SweepInterval,
		ReconnectAttempts: cfg.Cache.ReconnectAttempts,
		ReconnectDelay:    cfg.Cache.ReconnectDelay,
	}, log)
	if err != nil {
		return nil, err
	}

	guard, err := cron.NewGuard(tiered, cron.GuardConfig{
		Prefix:            cfg.Cron.Prefix,
		DefaultLockTTL:    cfg.Cron.LockTTL,
		DefaultSkipWindow: cfg.Cron.SkipWindow,
	}, log)
	if err != nil {
		tiered.Close()
		return nil, err
	}

	limiter := ratelimit.NewLimiter(tiered, cfg.RateLimit.Prefix, log)
	breakers := resilience.NewBreakerGroup(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeout)

	registry := health.NewRegistry()
	registry.Register(health.NewPingChecker("liveness"))
	registry.Register(health.NewCacheChecker("cache", tiered, cfg.Cache.OperationTimeout))

	return &Platform{
		Cache:    tiered,
		Guard:    guard,
		Limiter:  limiter,
		Breakers: breakers,
		Health:   registry,
		Log:      log,
		cronCfg:  cfg.Cron,
		retryDefaults: retry.Options{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Base:         cfg.Retry.Base,
		},
	}, nil
}

// RetryDefaults returns the configured retry options for job handlers.
func (p *Platform) RetryDefaults() retry.Options {
	return p.retryDefaults
}

// WrapJob builds a secured cron endpoint for the handler using the
// platform's configured secret, lock TTL, skip window and retry defaults.
func (p *Platform) WrapJob(job string, handler cron.JobHandler) http.HandlerFunc {
	return p.Guard.WrapHandler(job, handler, cron.HandlerOptions{
		Secret:         p.cronCfg.Secret,
		LockTTL:        p.cronCfg.LockTTL,
		SkipWindow:     p.cronCfg.SkipWindow,
		AttemptTimeout: p.cronCfg.AttemptTimeout,
		Retry:          p.retryDefaults,
	})
}

// MetricsHandler exposes the toolkit's Prometheus metrics.
func (p *Platform) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// RateLimitMiddleware builds the HTTP middleware from the platform's
// configured limit and window.
func (p *Platform) RateLimitMiddleware(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	return ratelimit.Middleware(p.Limiter, ratelimit.MiddlewareConfig{
		Limit:  cfg.Limit,
		Window: cfg.Window,
	})
}

// Shutdown stops background workers and closes backend connections.
// Idempotent; later calls return the first result.
func (p *Platform) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		done := make(chan error, 1)
		go func() {
			done <- p.Cache.Close()
		}()
		select {
		case err := <-done:
			p.shutdownErr = err
		case <-ctx.Done():
			p.shutdownErr = ctx.Err()
		}
		p.Log.Info("platform shut down")
	})
	return p.shutdownErr
}
