package settlement

import (
	"tienda-cloud/internal/money"
)

// Method identifies how a payment line was collected.
type Method string

const (
	MethodEfectivoBs    Method = "efectivo_bs"
	MethodEfectivoUSD   Method = "efectivo_usd"
	MethodPagoMovil     Method = "pago_movil"
	MethodTransferencia Method = "transferencia"
	MethodZelle         Method = "zelle"
	MethodBinance       Method = "binance"
	MethodTarjeta       Method = "tarjeta"
)

// MethodTable maps every accepted payment method to its fixed currency
// affinity. The table is exhaustive and is checked at startup; there is no
// name-based fallback.
type MethodTable map[Method]money.Currency

// DefaultMethodTable returns the platform's built-in method table.
func DefaultMethodTable() MethodTable {
	return MethodTable{
		MethodEfectivoBs:    money.CurrencyBs,
		MethodPagoMovil:     money.CurrencyBs,
		MethodTransferencia: money.CurrencyBs,
		MethodTarjeta:       money.CurrencyBs,
		MethodEfectivoUSD:   money.CurrencyUSD,
		MethodZelle:         money.CurrencyUSD,
		MethodBinance:       money.CurrencyUSD,
	}
}

// Validate checks the table is non-empty and every entry names a known
// currency. Wiring must call this before serving requests.
func (t MethodTable) Validate() error {
	if len(t) == 0 {
		return ErrNoMethods
	}
	for method, currency := range t {
		if method == "" {
			return ErrUnknownMethod
		}
		if _, ok := money.NormalizeCurrency(string(currency)); !ok {
			return ErrUnresolvedCurrency
		}
	}
	return nil
}

// CurrencyFor returns the currency affinity of a method.
func (t MethodTable) CurrencyFor(method Method) (money.Currency, bool) {
	currency, ok := t[method]
	return currency, ok
}
