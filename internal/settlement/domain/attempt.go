package settlement

import (
	"tienda-cloud/internal/money"
)

// PaymentLine is one collected payment inside a settlement attempt.
// Immutable once added; removable before commit.
type PaymentLine struct {
	Method    Method       `json:"method"`
	Amount    money.Amount `json:"amount"`
	Reference string       `json:"reference,omitempty"`
}

// Attempt is the in-progress set of payment lines being assembled before
// commit. The zero value built by NewAttempt is ready to use; all mutation
// returns a new Attempt, the receiver is never changed.
type Attempt struct {
	lines []PaymentLine
}

// NewAttempt builds an empty settlement attempt resolving lines against the
// given method table.
func NewAttempt() Attempt {
	return Attempt{}
}

// Lines returns a detached copy of the current payment lines.
func (a Attempt) Lines() []PaymentLine {
	return append([]PaymentLine(nil), a.lines...)
}

// AddLine validates the line and returns the extended attempt. A missing
// currency is filled in from the method table; an unknown method without an
// explicit currency fails with ErrUnresolvedCurrency.
func (a Attempt) AddLine(table MethodTable, line PaymentLine) (Attempt, error) {
	if line.Amount.Value <= 0 {
		return a, money.ErrInvalidAmount
	}
	if line.Amount.Currency == "" {
		currency, ok := table.CurrencyFor(line.Method)
		if !ok {
			return a, ErrUnresolvedCurrency
		}
		line.Amount.Currency = currency
	} else if _, ok := money.NormalizeCurrency(string(line.Amount.Currency)); !ok {
		return a, ErrUnresolvedCurrency
	}
	line.Amount.Value = money.Round2(line.Amount.Value)

	next := Attempt{lines: append(append([]PaymentLine(nil), a.lines...), line)}
	return next, nil
}

// RemoveLine returns the attempt without the line at index.
func (a Attempt) RemoveLine(index int) (Attempt, error) {
	if index < 0 || index >= len(a.lines) {
		return a, ErrLineIndex
	}
	lines := make([]PaymentLine, 0, len(a.lines)-1)
	lines = append(lines, a.lines[:index]...)
	lines = append(lines, a.lines[index+1:]...)
	return Attempt{lines: lines}, nil
}

// Len returns the number of payment lines.
func (a Attempt) Len() int { return len(a.lines) }
