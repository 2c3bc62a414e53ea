package rates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tienda-cloud/internal/money"
)

const defaultRatesTable = "exchange_rates"

// PostgresRateProvider resolves the exchange rate in effect at a point in
// time from the published rate history.
type PostgresRateProvider struct {
	db    *sql.DB
	table string
}

// RateOption configures the provider.
type RateOption func(*PostgresRateProvider)

// WithRatesTable overrides the rates table name.
func WithRatesTable(table string) RateOption {
	return func(p *PostgresRateProvider) {
		if table != "" {
			p.table = table
		}
	}
}

// NewPostgresRateProvider constructs a provider.
func NewPostgresRateProvider(db *sql.DB, opts ...RateOption) *PostgresRateProvider {
	p := &PostgresRateProvider{db: db, table: defaultRatesTable}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RateAt returns the most recent rate published at or before the timestamp.
func (p *PostgresRateProvider) RateAt(ctx context.Context, at time.Time) (float64, error) {
	if p == nil || p.db == nil {
		return 0, errors.New("rate provider: nil db")
	}
	if at.IsZero() {
		return 0, errors.New("rate provider: invalid timestamp")
	}

	query := fmt.Sprintf(`
SELECT rate
FROM %s
WHERE effective_at <= $1
ORDER BY effective_at DESC
LIMIT 1`, p.table)

	var rate float64
	if err := p.db.QueryRowContext(ctx, query, at.UTC()).Scan(&rate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errors.New("rate provider: no published rate")
		}
		return 0, err
	}
	if !money.IsPositiveRate(rate) {
		return 0, money.ErrInvalidExchangeRate
	}
	return rate, nil
}
