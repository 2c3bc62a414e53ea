package money

import "errors"

var (
	ErrInvalidAmount       = errors.New("money: invalid amount")
	ErrInvalidExchangeRate = errors.New("money: invalid exchange rate")
	ErrCurrencyMismatch    = errors.New("money: currency mismatch")
)
