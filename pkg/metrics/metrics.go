// Package metrics exposes the server's operational counters and
// histograms as Prometheus collectors: connection counts, commit/abort
// totals, WAL sync latency, and index bucket counts. This is operational
// telemetry about the server process, not a second data-access path over
// documents.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corvusdb_connections_active",
		Help: "Current number of open client connections",
	})

	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "corvusdb_connections_total",
		Help: "Total number of client connections accepted",
	})

	ConnectionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "corvusdb_connections_rejected_total",
		Help: "Total number of client connections rejected for exceeding max_connections",
	})

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corvusdb_requests_total",
			Help: "Total number of wire requests processed by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "corvusdb_request_duration_seconds",
			Help:    "Wire request processing duration in seconds, by method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	TransactionsCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "corvusdb_transactions_committed_total",
		Help: "Total number of transactions committed",
	})

	TransactionsAborted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corvusdb_transactions_aborted_total",
			Help: "Total number of transactions aborted, by reason",
		},
		[]string{"reason"},
	)

	WalSyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "corvusdb_wal_sync_duration_seconds",
		Help:    "Time taken to fsync the write-ahead log in seconds",
		Buckets: prometheus.DefBuckets,
	})

	DocumentsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corvusdb_documents_total",
		Help: "Current number of live documents in the store",
	})

	IndexBucketsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corvusdb_index_buckets_total",
			Help: "Current number of distinct key buckets per index",
		},
		[]string{"index"},
	)
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		ConnectionsTotal,
		ConnectionsRejected,
		RequestsTotal,
		RequestDuration,
		TransactionsCommitted,
		TransactionsAborted,
		WalSyncDuration,
		DocumentsTotal,
		IndexBucketsTotal,
	)
}

// Handler returns the Prometheus scrape HTTP handler, mounted on an
// optional side port by cmd/corvusdb-server.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's duration for later observation into a
// histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// ObserveSeconds records the elapsed time into histogram.
func (t Timer) ObserveSeconds(histogram prometheus.Observer) {
	histogram.Observe(time.Since(t.start).Seconds())
}
