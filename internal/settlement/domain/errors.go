package settlement

import "errors"

var (
	ErrUnresolvedCurrency = errors.New("settlement: unresolved currency for payment method")
	ErrLineIndex          = errors.New("settlement: payment line index out of range")
	ErrNoMethods          = errors.New("settlement: empty payment method table")
	ErrUnknownMethod      = errors.New("settlement: unknown payment method")
)
