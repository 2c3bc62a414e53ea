package rates

import (
	"context"
	"time"

	"tienda-cloud/internal/money"
)

// FixedRateProvider returns a fixed secondary-to-reference exchange rate.
type FixedRateProvider struct {
	rate float64
}

// NewFixedRateProvider constructs the provider.
func NewFixedRateProvider(rate float64) (*FixedRateProvider, error) {
	if !money.IsPositiveRate(rate) {
		return nil, money.ErrInvalidExchangeRate
	}
	return &FixedRateProvider{rate: rate}, nil
}

// RateAt returns the configured fixed rate.
func (p *FixedRateProvider) RateAt(ctx context.Context, at time.Time) (float64, error) {
	_ = ctx
	_ = at
	return p.rate, nil
}
