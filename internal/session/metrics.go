package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts session store operations by result.
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripgate_session_store_operations_total",
			Help: "Total number of session store operations",
		},
		[]string{"operation", "status"},
	)
)

// recordOperation records a store operation outcome.
func recordOperation(operation, status string) {
	operationsTotal.WithLabelValues(operation, status).Inc()
}
