// ABOUTME: Prometheus instrumentation for writes, reads, reconciliation and the HTTP API.
// ABOUTME: Collectors are package-level and registered with the default registry in init.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Write path metrics
	WritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthhub_writes_total",
			Help: "Total number of records written by kind and destination",
		},
		[]string{"kind", "stored"},
	)

	FallbackWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthhub_fallback_write_failures_total",
			Help: "Total number of writes lost because both stores failed",
		},
	)

	// Read path metrics
	ReadFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthhub_read_fallbacks_total",
			Help: "Total number of reads served from the fallback store by operation",
		},
		[]string{"operation"},
	)

	// Reconciliation metrics
	ReconcileInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthhub_reconcile_inserted_total",
			Help: "Total number of staged records moved into the primary store",
		},
	)

	ReconcileFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthhub_reconcile_failed_total",
			Help: "Total number of staged records that failed to reconcile",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthhub_reconcile_duration_seconds",
			Help:    "Reconciliation drain duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FallbackPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthhub_fallback_pending",
			Help: "Number of records waiting in the fallback store",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthhub_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthhub_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(WritesTotal)
	prometheus.MustRegister(FallbackWriteFailures)
	prometheus.MustRegister(ReadFallbacksTotal)
	prometheus.MustRegister(ReconcileInserted)
	prometheus.MustRegister(ReconcileFailed)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(FallbackPending)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in a histogram.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time in a histogram vector.
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
