package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scan registry.
type Metrics struct {
	ScansSubmitted  prometheus.Counter
	ScansResolved   *prometheus.CounterVec
	SubmitFailures  *prometheus.CounterVec
	IndexConflicts  prometheus.Counter
	StoreOpDuration *prometheus.HistogramVec
	HTTPDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ScansSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "breachscan_scans_submitted_total",
			Help: "Total number of scan submissions accepted",
		}),
		ScansResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "breachscan_scans_resolved_total",
			Help: "Total number of resolved scans by outcome",
		}, []string{"outcome"}),
		SubmitFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "breachscan_submit_failures_total",
			Help: "Total number of failed submissions by stage",
		}, []string{"stage"}),
		IndexConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "breachscan_index_append_conflicts_total",
			Help: "Optimistic-lock retries observed while appending to the scan index",
		}),
		StoreOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "breachscan_store_op_duration_ms",
			Help:    "Latency of key-value store operations in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"op"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "breachscan_http_request_duration_ms",
			Help:    "Latency of HTTP requests in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"route", "method"}),
	}
}

// The helpers below are nil-safe so tests can construct components without a
// registry; promauto registration panics on duplicates, which rules out
// calling New once per test.

// ObserveStoreOp records a store call's latency under its operation label.
func (m *Metrics) ObserveStoreOp(op string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(op).
		Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

// IncSubmitted counts an accepted scan submission.
func (m *Metrics) IncSubmitted() {
	if m == nil {
		return
	}
	m.ScansSubmitted.Inc()
}

// IncResolved counts a resolved scan under its outcome label.
func (m *Metrics) IncResolved(outcome string) {
	if m == nil {
		return
	}
	m.ScansResolved.WithLabelValues(outcome).Inc()
}

// IncSubmitFailure counts a failed submission under the stage it failed at.
func (m *Metrics) IncSubmitFailure(stage string) {
	if m == nil {
		return
	}
	m.SubmitFailures.WithLabelValues(stage).Inc()
}

// IncIndexConflict counts an optimistic-lock retry on the index key.
func (m *Metrics) IncIndexConflict() {
	if m == nil {
		return
	}
	m.IndexConflicts.Inc()
}
