package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "tienda_"

// Result labels for operation outcomes.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	settlementEvaluate = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "settlement_evaluate_seconds",
			Help:    "Settlement attempt evaluation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
	ledgerRecord = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "ledger_record_seconds",
			Help:    "Balance ledger settlement recording latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result", "final"},
	)
	approvalSubmit = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "approval_submit_seconds",
			Help:    "Discount request submission latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
	approvalResolve = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "approval_resolve_seconds",
			Help:    "Discount request resolution latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result", "decision"},
	)
	ledgerExport = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "ledger_export_seconds",
			Help:    "Ledger export latency by format",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format", "result"},
	)
	notifyDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "notify_delivered_total",
			Help: "Events delivered to notification subscribers",
		},
		[]string{"topic_kind"},
	)
)

// Register registers all collectors. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			settlementEvaluate,
			ledgerRecord,
			approvalSubmit,
			approvalResolve,
			ledgerExport,
			notifyDelivered,
		)
	})
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSettlementEvaluate records an evaluation.
func ObserveSettlementEvaluate(result string, duration time.Duration) {
	settlementEvaluate.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveLedgerRecord records a recordSettlement call.
func ObserveLedgerRecord(result string, final bool, duration time.Duration) {
	label := "abono"
	if final {
		label = "final"
	}
	ledgerRecord.WithLabelValues(result, label).Observe(duration.Seconds())
}

// ObserveApprovalSubmit records a discount submission.
func ObserveApprovalSubmit(result string, duration time.Duration) {
	approvalSubmit.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveApprovalResolve records a resolution attempt.
func ObserveApprovalResolve(result, decision string, duration time.Duration) {
	approvalResolve.WithLabelValues(result, decision).Observe(duration.Seconds())
}

// ObserveLedgerExport records an export by format (pdf, xlsx).
func ObserveLedgerExport(format, result string, duration time.Duration) {
	ledgerExport.WithLabelValues(format, result).Observe(duration.Seconds())
}

// CountNotifyDelivered counts a delivered notification.
func CountNotifyDelivered(topicKind string) {
	notifyDelivered.WithLabelValues(topicKind).Inc()
}
