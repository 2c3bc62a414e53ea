package money

import (
	"math"
	"strconv"
	"strings"
)

// maxMagnitude bounds accepted values; anything at or above is rejected.
const maxMagnitude = 1e12

// centEpsilon is the display tolerance. Equality checks for gating
// irreversible actions must compare rounded values exactly instead.
const centEpsilon = 0.01

// Round2 rounds half away from zero to 2 decimals by scaling to integer
// cents first, so chained sums of rounded values never show sub-cent drift.
// The epsilon nudge keeps exact half-cents (2.675 -> 267.4999...) from
// landing on the wrong side of the binary representation.
func Round2(x float64) float64 {
	scaled := x * 100
	switch {
	case scaled > 0:
		scaled += 1e-9
	case scaled < 0:
		scaled -= 1e-9
	}
	return math.Round(scaled) / 100
}

// Add returns the rounded sum of two already-rounded values.
func Add(a, b float64) float64 {
	return Round2(a + b)
}

// Subtract returns the rounded difference a-b.
func Subtract(a, b float64) float64 {
	return Round2(a - b)
}

// Multiply returns the rounded product.
func Multiply(a, b float64) float64 {
	return Round2(a * b)
}

// Divide returns the rounded quotient a/b.
func Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ErrInvalidAmount
	}
	return Round2(a / b), nil
}

// Convert converts an amount with the given exchange rate, rounding the
// result. Callers must validate the rate with IsPositiveRate first.
func Convert(amount, rate float64) float64 {
	return Multiply(amount, rate)
}

// IsPositiveRate reports whether rate is a usable exchange rate.
func IsPositiveRate(rate float64) bool {
	return rate > 0 && !math.IsInf(rate, 0) && !math.IsNaN(rate) && rate < maxMagnitude
}

// Parse parses a raw amount string accepting "," or "." as the fractional
// separator. It rejects negative, non-finite and absurdly large values.
func Parse(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Count(trimmed, ",") == 1 && !strings.Contains(trimmed, ".") {
		trimmed = strings.Replace(trimmed, ",", ".", 1)
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidAmount
	}
	if value < 0 || value >= maxMagnitude {
		return 0, ErrInvalidAmount
	}
	return Round2(value), nil
}

// EqualWithinCent reports whether two values differ by less than a cent.
// Display helper only; never the completion predicate for a balance.
func EqualWithinCent(a, b float64) bool {
	return math.Abs(a-b) < centEpsilon
}

// Amount is a rounded non-negative value tagged with its currency.
type Amount struct {
	Value    float64  `json:"value"`
	Currency Currency `json:"currency"`
}

// NewAmount builds a validated, rounded Amount.
func NewAmount(value float64, currency Currency) (Amount, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value >= maxMagnitude {
		return Amount{}, ErrInvalidAmount
	}
	if _, ok := NormalizeCurrency(string(currency)); !ok {
		return Amount{}, ErrCurrencyMismatch
	}
	return Amount{Value: Round2(value), Currency: currency}, nil
}

// Plus adds another amount of the same currency.
func (a Amount) Plus(other Amount) (Amount, error) {
	if a.Currency != other.Currency {
		return Amount{}, ErrCurrencyMismatch
	}
	return Amount{Value: Add(a.Value, other.Value), Currency: a.Currency}, nil
}

// InReference converts the amount to the reference currency using rate
// (reference units per secondary unit).
func (a Amount) InReference(rate float64) float64 {
	if a.Currency == Reference() {
		return Round2(a.Value)
	}
	return Convert(a.Value, rate)
}

// IsZero reports whether the rounded value is zero.
func (a Amount) IsZero() bool { return a.Value == 0 }
