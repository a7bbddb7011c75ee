package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provakit_cache_hits_total",
			Help: "Total number of cache hits by serving tier",
		},
		[]string{"tier"},
	)

	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provakit_cache_misses_total",
			Help: "Total number of cache misses across both tiers",
		},
	)

	cacheFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provakit_cache_fallback_total",
			Help: "Total number of operations degraded to the in-memory fallback",
		},
		[]string{"operation"},
	)

	cacheReconnectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provakit_cache_reconnect_total",
			Help: "Total number of remote backend reconnection attempts",
		},
		[]string{"status"},
	)
)

func recordCacheHit(tier string) {
	cacheHitsTotal.WithLabelValues(tier).Inc()
}

func recordCacheMiss() {
	cacheMissesTotal.Inc()
}

func recordCacheFallback(operation string) {
	cacheFallbackTotal.WithLabelValues(operation).Inc()
}

func recordCacheReconnect(status string) {
	cacheReconnectTotal.WithLabelValues(status).Inc()
}
