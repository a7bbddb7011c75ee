package cron

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cronAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provakit_cron_acquire_total",
			Help: "Lock acquisition attempts by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	cronRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provakit_cron_runs_total",
			Help: "Wrapped cron handler runs by job and status",
		},
		[]string{"job", "status"},
	)
)

func recordAcquire(job, outcome string) {
	cronAcquireTotal.WithLabelValues(normalizeLabel(job), normalizeLabel(outcome)).Inc()
}

func recordRun(job, status string) {
	cronRunsTotal.WithLabelValues(normalizeLabel(job), normalizeLabel(status)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
