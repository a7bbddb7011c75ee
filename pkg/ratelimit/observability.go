package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "provakit_ratelimit_decisions_total",
	Help: "Rate limit decisions by outcome (allowed, rejected, error).",
}, []string{"outcome"})

func recordRateLimitDecision(outcome string) {
	rateLimitDecisions.WithLabelValues(outcome).Inc()
}
