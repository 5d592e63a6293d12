package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// attemptsTotal counts authentication attempts by outcome.
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripgate_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"outcome"},
	)

	// attemptDuration observes end-to-end pipeline latency.
	attemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tripgate_auth_attempt_duration_seconds",
			Help:    "Authentication pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// recordAttempt records one pipeline run.
func recordAttempt(outcome string, elapsed time.Duration) {
	attemptsTotal.WithLabelValues(outcome).Inc()
	attemptDuration.Observe(elapsed.Seconds())
}
