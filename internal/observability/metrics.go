// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	TransactionsProcessed *prometheus.CounterVec
	TransactionsRejected  *prometheus.CounterVec
	ArithmeticFailures    prometheus.Counter
	ConcurrencyConflicts  prometheus.Counter
	CommitDuration        prometheus.Histogram
	OpenHoldings          prometheus.Gauge

	// Reconciliation metrics
	RebuildsTotal       *prometheus.CounterVec
	RebuildDuration     prometheus.Histogram
	DivergencesDetected prometheus.Counter

	// Price collaborator metrics
	PriceUpdates prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "invest_ledger"
	}

	return &Metrics{
		TransactionsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_processed_total",
			Help:      "Total number of transactions admitted and applied, by type",
		}, []string{"type"}),
		TransactionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_rejected_total",
			Help:      "Total number of transactions rejected by validation, by reason",
		}, []string{"reason"}),
		ArithmeticFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "arithmetic_failures_total",
			Help:      "Total number of aborted mutations that failed the holding invariant",
		}),
		ConcurrencyConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "concurrency_conflicts_total",
			Help:      "Total number of commits that lost a race on a holding key",
		}),
		CommitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "commit_duration_seconds",
			Help:      "Duration of atomic transaction+holding commits in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		OpenHoldings: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "open_holdings",
			Help:      "Number of holdings opened minus holdings closed by the incremental path",
		}),

		RebuildsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "rebuilds_total",
			Help:      "Total number of account rebuilds, by status",
		}, []string{"status"}),
		RebuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "rebuild_duration_seconds",
			Help:      "Account rebuild duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		DivergencesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "divergences_detected_total",
			Help:      "Total number of holdings whose stored state diverged from replay",
		}),

		PriceUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "updates_total",
			Help:      "Total number of market price updates applied to holdings",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTransactionProcessed increments the processed counter for a type.
func RecordTransactionProcessed(txType string) {
	DefaultMetrics.TransactionsProcessed.WithLabelValues(txType).Inc()
}

// RecordTransactionRejected increments the rejected counter for a reason.
func RecordTransactionRejected(reason string) {
	DefaultMetrics.TransactionsRejected.WithLabelValues(reason).Inc()
}

// RecordArithmeticFailure increments the invariant-failure counter.
func RecordArithmeticFailure() {
	DefaultMetrics.ArithmeticFailures.Inc()
}

// RecordConcurrencyConflict increments the conflict counter.
func RecordConcurrencyConflict() {
	DefaultMetrics.ConcurrencyConflicts.Inc()
}

// RecordCommitDuration observes one atomic commit.
func RecordCommitDuration(seconds float64) {
	DefaultMetrics.CommitDuration.Observe(seconds)
}

// RecordHoldingOpened increments the open-holdings gauge.
func RecordHoldingOpened() {
	DefaultMetrics.OpenHoldings.Inc()
}

// RecordHoldingClosed decrements the open-holdings gauge.
func RecordHoldingClosed() {
	DefaultMetrics.OpenHoldings.Dec()
}

// RecordRebuild records an account rebuild.
func RecordRebuild(status string, seconds float64) {
	DefaultMetrics.RebuildsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RebuildDuration.Observe(seconds)
}

// RecordDivergences adds to the divergence counter.
func RecordDivergences(n int) {
	DefaultMetrics.DivergencesDetected.Add(float64(n))
}

// RecordPriceUpdate increments the price update counter.
func RecordPriceUpdate() {
	DefaultMetrics.PriceUpdates.Inc()
}
