package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provakit_breaker_transitions_total",
		Help: "Circuit breaker state transitions by breaker key and resulting state.",
	}, []string{"key", "state"})

	breakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provakit_breaker_rejections_total",
		Help: "Calls rejected because the circuit breaker was open.",
	}, []string{"key"})
)

func recordBreakerTransition(key string, to State) {
	breakerTransitions.WithLabelValues(key, to.String()).Inc()
}

func recordBreakerRejection(key string) {
	breakerRejections.WithLabelValues(key).Inc()
}
