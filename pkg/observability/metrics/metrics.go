// Package metrics exposes the toolkit's Prometheus metrics. The cache, cron,
// resilience and ratelimit packages register their collectors on the default
// registerer at init, so one handler serves them all alongside the Go
// runtime metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler that exposes all registered metrics in
// Prometheus format. Mount it on the management server at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MustRegister registers application collectors next to the toolkit's own.
func MustRegister(collectors ...prometheus.Collector) {
	prometheus.DefaultRegisterer.MustRegister(collectors...)
}
