package settlement

import (
	"math"

	"tienda-cloud/internal/money"
)

// Result is the derived outcome of evaluating a settlement attempt against
// a target amount. It is recomputed on every line mutation, never stored.
type Result struct {
	TotalCollectedBs        float64       `json:"totalCollectedBs"`
	TotalCollectedUSD       float64       `json:"totalCollectedUsd"`
	TotalCollectedReference float64       `json:"totalCollectedReference"`
	IsComplete              bool          `json:"isComplete"`
	Surplus                 money.Amount  `json:"surplus"`
	ChangeLines             []PaymentLine `json:"changeLines,omitempty"`
	// Gratuity is the part of the surplus not returnable as change in the
	// collected currencies (sub-cent residue after clamping).
	Gratuity float64 `json:"gratuity"`
	// PrincipalMethod is the method of the largest single line by reference
	// equivalent, used for reporting.
	PrincipalMethod Method `json:"principalMethod,omitempty"`
}

// Evaluate reconciles the attempt's lines against targetReference using the
// given exchange rate (reference units per secondary unit).
//
// With allowPartial false the attempt is complete only when the collected
// reference equivalent covers the target; an under-payment is never silently
// accepted. With allowPartial true any positive contribution counts (abonos).
func Evaluate(attempt Attempt, targetReference, rate float64, allowPartial bool) (Result, error) {
	if !money.IsPositiveRate(rate) {
		return Result{}, money.ErrInvalidExchangeRate
	}
	targetReference = money.Round2(targetReference)

	var result Result
	for _, line := range attempt.lines {
		switch line.Amount.Currency {
		case money.CurrencyBs:
			result.TotalCollectedBs = money.Add(result.TotalCollectedBs, line.Amount.Value)
		case money.CurrencyUSD:
			result.TotalCollectedUSD = money.Add(result.TotalCollectedUSD, line.Amount.Value)
		default:
			return Result{}, ErrUnresolvedCurrency
		}
	}
	result.TotalCollectedReference = money.Add(
		result.TotalCollectedBs,
		money.Convert(result.TotalCollectedUSD, rate),
	)

	diff := money.Subtract(result.TotalCollectedReference, targetReference)
	if allowPartial {
		result.IsComplete = result.TotalCollectedReference > 0
	} else {
		// An attempt with no lines is never complete, even against a
		// zero target.
		result.IsComplete = diff >= 0 && len(attempt.lines) > 0
	}
	result.Surplus = money.Amount{Value: math.Max(0, diff), Currency: money.Reference()}
	principal := principalLine(attempt.lines, rate)
	result.PrincipalMethod = principal.Method

	if diff > 0 && !allowPartial {
		result.ChangeLines, result.Gratuity = proposeChange(result, principal.Amount.Currency, rate)
	}
	return result, nil
}

// proposeChange builds synthetic change lines covering the surplus,
// preferring the currency of the largest input line and never handing back
// more than was collected in a currency.
func proposeChange(result Result, preferred money.Currency, rate float64) ([]PaymentLine, float64) {
	remaining := result.Surplus.Value

	order := []money.Currency{money.CurrencyBs, money.CurrencyUSD}
	if preferred == money.CurrencyUSD {
		order = []money.Currency{money.CurrencyUSD, money.CurrencyBs}
	}

	var lines []PaymentLine
	for _, currency := range order {
		if remaining <= 0 {
			break
		}
		var available float64 // in reference equivalent
		switch currency {
		case money.CurrencyBs:
			available = result.TotalCollectedBs
		case money.CurrencyUSD:
			available = money.Convert(result.TotalCollectedUSD, rate)
		}
		if available <= 0 {
			continue
		}
		give := math.Min(remaining, available)
		value := give
		if currency == money.CurrencyUSD {
			// Floor to the cent so the reference equivalent of the change
			// never exceeds the remaining surplus.
			value = math.Floor(give/rate*100) / 100
		}
		if value <= 0 {
			continue
		}
		lines = append(lines, PaymentLine{
			Method: changeMethodFor(currency),
			Amount: money.Amount{Value: value, Currency: currency},
		})
		if currency == money.CurrencyUSD {
			remaining = money.Subtract(remaining, money.Convert(value, rate))
		} else {
			remaining = money.Subtract(remaining, value)
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	return lines, remaining
}

// principalLine returns the line with the largest reference equivalent.
func principalLine(lines []PaymentLine, rate float64) PaymentLine {
	var best PaymentLine
	bestValue := 0.0
	for _, line := range lines {
		equivalent := line.Amount.InReference(rate)
		if equivalent > bestValue {
			bestValue = equivalent
			best = line
		}
	}
	if best.Amount.Currency == "" {
		best.Amount.Currency = money.Reference()
	}
	return best
}

// changeMethodFor picks the cash method used for synthetic change lines.
func changeMethodFor(currency money.Currency) Method {
	if currency == money.CurrencyUSD {
		return MethodEfectivoUSD
	}
	return MethodEfectivoBs
}
