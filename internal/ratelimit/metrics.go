package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	// decisionsTotal counts limiter decisions by outcome.
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripgate_ratelimit_decisions_total",
			Help: "Total number of rate limit decisions",
		},
		[]string{"outcome"},
	)

	// fallbacksTotal counts fail-open fallbacks to the local limiter.
	fallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripgate_ratelimit_fallbacks_total",
			Help: "Total number of fail-open fallbacks to the local limiter",
		},
	)

	// breakerState reports the redis circuit breaker state.
	breakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripgate_ratelimit_breaker_state",
			Help: "Rate limit circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// recordDecision records a limiter decision outcome.
func recordDecision(outcome string) {
	decisionsTotal.WithLabelValues(outcome).Inc()
}

// recordFallback records a fail-open fallback.
func recordFallback() {
	fallbacksTotal.Inc()
}

// recordBreakerState records the circuit breaker state.
func recordBreakerState(state gobreaker.State) {
	switch state {
	case gobreaker.StateClosed:
		breakerState.Set(0)
	case gobreaker.StateHalfOpen:
		breakerState.Set(1)
	case gobreaker.StateOpen:
		breakerState.Set(2)
	}
}
