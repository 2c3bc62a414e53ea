package metrics

import (
	"database/sql"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerDBOnce sync.Once

// RegisterDBMetrics exposes store-backed gauges. Call once after the
// database connection is established.
func RegisterDBMetrics(db *sql.DB, logger *log.Logger) {
	registerDBOnce.Do(func() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "discount_requests_pending",
				Help: "Discount requests waiting for an approver",
			},
			func() float64 {
				return queryCount(db, logger, "SELECT COUNT(*) FROM discount_requests WHERE state = 'PENDING'")
			},
		))

		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "ledger_entries_unsettled",
				Help: "Balance ledger entries with an outstanding balance",
			},
			func() float64 {
				return queryCount(db, logger, "SELECT COUNT(*) FROM balance_ledger WHERE status <> 'SETTLED'")
			},
		))
	})
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
