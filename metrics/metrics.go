// Package metrics provides Prometheus metrics for dslockd operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dslockd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dslockd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Lock coordinator metrics
	LockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dslockd_lock_operations_total",
			Help: "Total number of lock operations",
		},
		// operation: "acquire", "release", "force-release";
		// status: "success", "conflict", "denied", "not-locked", "error"
		[]string{"operation", "status"},
	)

	LockOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dslockd_lock_operation_duration_seconds",
			Help:    "Lock operation duration in seconds, including the backend call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Held locks gauge, one series per datastore
	HeldLocks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dslockd_held_locks",
			Help: "Whether the datastore lock is currently held (0 or 1)",
		},
		[]string{"datastore"},
	)

	// Session metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dslockd_active_sessions",
			Help: "Number of currently open client sessions",
		},
	)

	SessionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dslockd_sessions_closed_total",
			Help: "Total number of sessions closed",
		},
		[]string{"reason"}, // "client", "expired"
	)

	// Audit database metrics
	AuditDBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dslockd_audit_db_queries_total",
			Help: "Total number of audit database queries",
		},
		[]string{"operation"},
	)

	// Watch stream metrics
	WatchSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dslockd_watch_subscribers",
			Help: "Number of connected lock-event watch subscribers",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dslockd_errors_total",
			Help: "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
)

// RegisterMetrics ensures all metrics are registered with Prometheus.
// This function is idempotent and safe to call multiple times.
func RegisterMetrics() {
	// All metrics are automatically registered via promauto.
	// This function exists for explicit initialization if needed.
}
