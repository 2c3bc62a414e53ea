package settlement

import (
	"errors"
	"testing"

	"tienda-cloud/internal/money"
)

func mustAdd(t *testing.T, attempt Attempt, method Method, value float64, currency money.Currency) Attempt {
	t.Helper()
	next, err := attempt.AddLine(DefaultMethodTable(), PaymentLine{
		Method: method,
		Amount: money.Amount{Value: value, Currency: currency},
	})
	if err != nil {
		t.Fatalf("add line %s %v: %v", method, value, err)
	}
	return next
}

func TestEvaluate_ExactMixedCurrency(t *testing.T) {
	// target 100.00 bs at rate 40: 50 bs + 1.25 usd settles exactly.
	attempt := NewAttempt()
	attempt = mustAdd(t, attempt, MethodPagoMovil, 50, money.CurrencyBs)
	attempt = mustAdd(t, attempt, MethodEfectivoUSD, 1.25, money.CurrencyUSD)

	result, err := Evaluate(attempt, 100.00, 40, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.TotalCollectedReference != 100.00 {
		t.Fatalf("total reference = %v, want 100.00", result.TotalCollectedReference)
	}
	if !result.IsComplete {
		t.Fatalf("expected complete settlement")
	}
	if result.Surplus.Value != 0 {
		t.Fatalf("surplus = %v, want 0", result.Surplus.Value)
	}
	if len(result.ChangeLines) != 0 {
		t.Fatalf("expected no change lines, got %v", result.ChangeLines)
	}
}

func TestEvaluate_OverpaymentProposesChange(t *testing.T) {
	// target 100.00 at rate 40 with a single 120 bs line.
	attempt := mustAdd(t, NewAttempt(), MethodEfectivoBs, 120, money.CurrencyBs)

	result, err := Evaluate(attempt, 100.00, 40, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.IsComplete {
		t.Fatalf("expected complete settlement")
	}
	if result.Surplus.Value != 20.00 {
		t.Fatalf("surplus = %v, want 20.00", result.Surplus.Value)
	}
	if len(result.ChangeLines) != 1 {
		t.Fatalf("expected one change line, got %d", len(result.ChangeLines))
	}
	change := result.ChangeLines[0]
	if change.Amount.Currency != money.CurrencyBs || change.Amount.Value != 20.00 {
		t.Fatalf("change = %+v, want 20.00 bs", change)
	}
	if result.Gratuity != 0 {
		t.Fatalf("gratuity = %v, want 0", result.Gratuity)
	}
}

func TestEvaluate_ChangePreferredCurrencyOfLargestLine(t *testing.T) {
	// Largest line is in usd, so change comes back in usd first.
	attempt := NewAttempt()
	attempt = mustAdd(t, attempt, MethodEfectivoBs, 20, money.CurrencyBs)
	attempt = mustAdd(t, attempt, MethodEfectivoUSD, 3, money.CurrencyUSD)

	result, err := Evaluate(attempt, 100.00, 40, false) // 20 + 120 = 140 collected
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Surplus.Value != 40.00 {
		t.Fatalf("surplus = %v, want 40.00", result.Surplus.Value)
	}
	if result.PrincipalMethod != MethodEfectivoUSD {
		t.Fatalf("principal method = %v, want efectivo_usd", result.PrincipalMethod)
	}
	if len(result.ChangeLines) != 1 {
		t.Fatalf("expected one change line, got %+v", result.ChangeLines)
	}
	change := result.ChangeLines[0]
	if change.Amount.Currency != money.CurrencyUSD || change.Amount.Value != 1.00 {
		t.Fatalf("change = %+v, want 1.00 usd", change)
	}
}

func TestEvaluate_ChangeNeverExceedsSurplusOrCollected(t *testing.T) {
	// Surplus larger than what was collected in the preferred currency
	// spills into the other currency.
	attempt := NewAttempt()
	attempt = mustAdd(t, attempt, MethodEfectivoUSD, 2, money.CurrencyUSD) // 80 bs
	attempt = mustAdd(t, attempt, MethodEfectivoBs, 70, money.CurrencyBs)

	result, err := Evaluate(attempt, 30.00, 40, false) // collected 150, surplus 120
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Surplus.Value != 120.00 {
		t.Fatalf("surplus = %v, want 120.00", result.Surplus.Value)
	}
	total := 0.0
	for _, line := range result.ChangeLines {
		total = money.Add(total, line.Amount.InReference(40))
		switch line.Amount.Currency {
		case money.CurrencyUSD:
			if line.Amount.Value > 2 {
				t.Fatalf("usd change %v exceeds collected 2", line.Amount.Value)
			}
		case money.CurrencyBs:
			if line.Amount.Value > 70 {
				t.Fatalf("bs change %v exceeds collected 70", line.Amount.Value)
			}
		}
	}
	if total > result.Surplus.Value {
		t.Fatalf("change total %v exceeds surplus %v", total, result.Surplus.Value)
	}
	if money.Add(total, result.Gratuity) != result.Surplus.Value {
		t.Fatalf("change %v + gratuity %v != surplus %v", total, result.Gratuity, result.Surplus.Value)
	}
}

func TestEvaluate_UnderpaymentNeverComplete(t *testing.T) {
	attempt := mustAdd(t, NewAttempt(), MethodEfectivoBs, 99.99, money.CurrencyBs)
	result, err := Evaluate(attempt, 100.00, 40, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.IsComplete {
		t.Fatalf("under-payment must not be complete")
	}
	if result.Surplus.Value != 0 {
		t.Fatalf("surplus = %v, want 0", result.Surplus.Value)
	}
}

func TestEvaluate_PartialAcceptsAnyPositive(t *testing.T) {
	attempt := mustAdd(t, NewAttempt(), MethodZelle, 5, money.CurrencyUSD)
	result, err := Evaluate(attempt, 500.00, 40, true)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.IsComplete {
		t.Fatalf("partial settlement with positive amount should be accepted")
	}
	if len(result.ChangeLines) != 0 {
		t.Fatalf("partial settlements never propose change")
	}
}

func TestEvaluate_ZeroLines(t *testing.T) {
	for _, target := range []float64{100.00, 0} {
		for _, allowPartial := range []bool{false, true} {
			result, err := Evaluate(NewAttempt(), target, 40, allowPartial)
			if err != nil {
				t.Fatalf("evaluate empty (target=%v partial=%v): %v", target, allowPartial, err)
			}
			if result.IsComplete {
				t.Fatalf("empty attempt must not be complete (target=%v partial=%v)", target, allowPartial)
			}
		}
	}
}

func TestEvaluate_InvalidRate(t *testing.T) {
	attempt := mustAdd(t, NewAttempt(), MethodEfectivoBs, 10, money.CurrencyBs)
	for _, rate := range []float64{0, -40} {
		if _, err := Evaluate(attempt, 100, rate, false); !errors.Is(err, money.ErrInvalidExchangeRate) {
			t.Fatalf("rate %v: expected ErrInvalidExchangeRate, got %v", rate, err)
		}
	}
}

func TestEvaluate_OrderIndependentAndIdempotent(t *testing.T) {
	forward := NewAttempt()
	forward = mustAdd(t, forward, MethodPagoMovil, 12.34, money.CurrencyBs)
	forward = mustAdd(t, forward, MethodZelle, 7.89, money.CurrencyUSD)
	forward = mustAdd(t, forward, MethodEfectivoBs, 0.01, money.CurrencyBs)

	backward := NewAttempt()
	backward = mustAdd(t, backward, MethodEfectivoBs, 0.01, money.CurrencyBs)
	backward = mustAdd(t, backward, MethodZelle, 7.89, money.CurrencyUSD)
	backward = mustAdd(t, backward, MethodPagoMovil, 12.34, money.CurrencyBs)

	first, err := Evaluate(forward, 300, 36.55, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	second, err := Evaluate(backward, 300, 36.55, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if first.TotalCollectedReference != second.TotalCollectedReference {
		t.Fatalf("insertion order changed the total: %v vs %v",
			first.TotalCollectedReference, second.TotalCollectedReference)
	}

	again, err := Evaluate(forward, 300, 36.55, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if again.TotalCollectedReference != first.TotalCollectedReference ||
		again.IsComplete != first.IsComplete ||
		again.Surplus != first.Surplus {
		t.Fatalf("evaluate is not idempotent: %+v vs %+v", again, first)
	}
}

func TestAttempt_AddRemove(t *testing.T) {
	attempt := NewAttempt()
	if _, err := attempt.AddLine(DefaultMethodTable(), PaymentLine{
		Method: MethodEfectivoBs,
		Amount: money.Amount{Value: 0},
	}); !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := attempt.AddLine(DefaultMethodTable(), PaymentLine{
		Method: Method("criptomoneda"),
		Amount: money.Amount{Value: 10},
	}); !errors.Is(err, ErrUnresolvedCurrency) {
		t.Fatalf("unknown method without currency: expected ErrUnresolvedCurrency, got %v", err)
	}

	// Explicit currency makes an unknown method acceptable.
	attempt, err := attempt.AddLine(DefaultMethodTable(), PaymentLine{
		Method: Method("criptomoneda"),
		Amount: money.Amount{Value: 10, Currency: money.CurrencyUSD},
	})
	if err != nil {
		t.Fatalf("explicit currency: %v", err)
	}

	// Currency affinity fills in from the table.
	attempt = mustAdd(t, attempt, MethodPagoMovil, 25, "")
	lines := attempt.Lines()
	if lines[1].Amount.Currency != money.CurrencyBs {
		t.Fatalf("pago_movil line should infer bs, got %v", lines[1].Amount.Currency)
	}

	if _, err := attempt.RemoveLine(5); !errors.Is(err, ErrLineIndex) {
		t.Fatalf("expected ErrLineIndex, got %v", err)
	}
	attempt, err = attempt.RemoveLine(0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if attempt.Len() != 1 {
		t.Fatalf("expected 1 line after removal, got %d", attempt.Len())
	}

	// The attempt is immutable: mutations never alias the old line slice.
	base := mustAdd(t, NewAttempt(), MethodEfectivoBs, 1, money.CurrencyBs)
	grown := mustAdd(t, base, MethodEfectivoBs, 2, money.CurrencyBs)
	if base.Len() != 1 || grown.Len() != 2 {
		t.Fatalf("expected base 1 / grown 2, got %d / %d", base.Len(), grown.Len())
	}
}

func TestMethodTable_Validate(t *testing.T) {
	if err := DefaultMethodTable().Validate(); err != nil {
		t.Fatalf("default table must validate: %v", err)
	}
	if err := (MethodTable{}).Validate(); !errors.Is(err, ErrNoMethods) {
		t.Fatalf("empty table: expected ErrNoMethods, got %v", err)
	}
	bad := MethodTable{MethodZelle: money.Currency("eur")}
	if err := bad.Validate(); !errors.Is(err, ErrUnresolvedCurrency) {
		t.Fatalf("bad currency: expected ErrUnresolvedCurrency, got %v", err)
	}
}
