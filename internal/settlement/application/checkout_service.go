package application

import (
	"errors"
	"log"
	"time"

	"tienda-cloud/internal/money"
	"tienda-cloud/internal/observability/metrics"
	settlement "tienda-cloud/internal/settlement/domain"
)

// ErrGiftLimitExceeded is returned when the surplus left after change
// exceeds the configured gratuity allowance.
var ErrGiftLimitExceeded = errors.New("checkout: gratuity exceeds allowed limit")

// GiftAllowance bounds the surplus a cashier may accept as a gratuity
// instead of handing back change. The usd part is converted at the
// settlement's exchange rate.
type GiftAllowance struct {
	LimitBs  float64
	LimitUSD float64
}

// LimitInReference returns the combined allowance in reference currency.
func (g GiftAllowance) LimitInReference(rate float64) float64 {
	return money.Add(g.LimitBs, money.Convert(g.LimitUSD, rate))
}

// CheckoutService evaluates settlement attempts for a sale applying the
// store's gratuity policy on top of the pure engine.
type CheckoutService struct {
	table     settlement.MethodTable
	allowance GiftAllowance
	logger    *log.Logger
}

// NewCheckoutService constructs a checkout service. The method table must
// validate; wiring fails otherwise.
func NewCheckoutService(table settlement.MethodTable, allowance GiftAllowance, logger *log.Logger) (*CheckoutService, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &CheckoutService{table: table, allowance: allowance, logger: logger}, nil
}

// MethodTable returns the validated method table used for line resolution.
func (s *CheckoutService) MethodTable() settlement.MethodTable {
	return s.table
}

// Settle evaluates the attempt against the target amount. declaredChange
// is the change the cashier actually intends to hand back; surplus not
// covered by it is a gratuity and must stay within the allowance, otherwise
// Settle fails with ErrGiftLimitExceeded. With a nil declaredChange the
// engine's own change proposal is assumed to be handed back in full.
func (s *CheckoutService) Settle(attempt settlement.Attempt, targetReference, rate float64, allowPartial bool, declaredChange []settlement.PaymentLine) (settlement.Result, error) {
	start := time.Now()
	outcome := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettlementEvaluate(outcome, time.Since(start))
	}()

	result, err := settlement.Evaluate(attempt, targetReference, rate, allowPartial)
	if err != nil {
		outcome = metrics.ResultError
		return settlement.Result{}, err
	}
	if allowPartial {
		return result, nil
	}

	gratuity := result.Gratuity
	if declaredChange != nil {
		declared := 0.0
		for _, line := range declaredChange {
			declared = money.Add(declared, line.Amount.InReference(rate))
		}
		gratuity = money.Subtract(result.Surplus.Value, declared)
		if gratuity < 0 {
			gratuity = 0
		}
	}
	if gratuity > s.allowance.LimitInReference(rate) {
		outcome = metrics.ResultError
		if s.logger != nil {
			s.logger.Printf("gift_limit_exceeded gratuity=%.2f limit=%.2f target=%.2f",
				gratuity, s.allowance.LimitInReference(rate), targetReference)
		}
		return settlement.Result{}, ErrGiftLimitExceeded
	}
	if gratuity > 0 && s.logger != nil {
		s.logger.Printf("gift_accepted gratuity=%.2f target=%.2f", gratuity, targetReference)
	}
	result.Gratuity = gratuity
	return result, nil
}
