// Package metrics exposes Prometheus instrumentation for the seen registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry metrics
	EntriesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seen_entries_created_total",
			Help: "Total number of seen entries created",
		},
	)

	DuplicatesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seen_duplicates_rejected_total",
			Help: "Total number of creates rejected because a field value was already seen",
		},
	)

	EntriesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seen_entries_deleted_total",
			Help: "Total number of seen entries deleted",
		},
		[]string{"mode"}, // "single", "bulk"
	)

	DeleteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seen_delete_failures_total",
			Help: "Total number of entries a bulk delete failed to remove",
		},
	)

	// HTTP metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seen_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seen_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// RecordAPIRequest records a finished HTTP request
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDeleted counts n deleted entries for the given mode
func RecordDeleted(mode string, n int) {
	if n > 0 {
		EntriesDeleted.WithLabelValues(mode).Add(float64(n))
	}
}
