package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes.
const (
	ResultOK         = "ok"
	ResultNoIdentity = "no_identity"
	ResultNotFound   = "not_found"
	ResultError      = "error"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "operations_total",
			Help:      "Workspace repository operations by outcome.",
		},
		[]string{"operation", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "operation_duration_seconds",
			Help:      "Workspace repository operation latency, store round trips included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	migrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "migrations_total",
			Help:      "Documents rewritten into the current schema, by the layout they were read from.",
		},
		[]string{"source"},
	)

	storeCalls = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "call_duration_seconds",
			Help:      "Document store call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "call", "result"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per backend (0 closed, 1 open, 2 half-open).",
		},
		[]string{"backend"},
	)
)

// ObserveOperation records one repository operation.
func ObserveOperation(operation, result string, elapsed time.Duration) {
	operationsTotal.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveMigration counts a one-time schema rewrite.
func ObserveMigration(source string) {
	migrationsTotal.WithLabelValues(source).Inc()
}

// ObserveStoreCall records a single document store round trip.
func ObserveStoreCall(backend, call string, err error, elapsed time.Duration) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	storeCalls.WithLabelValues(backend, call, result).Observe(elapsed.Seconds())
}

// SetBreakerState exports the breaker state for a backend.
func SetBreakerState(backend string, state int) {
	breakerState.WithLabelValues(backend).Set(float64(state))
}
