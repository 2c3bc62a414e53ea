package money

// Currency is one of the two currencies the platform settles in.
type Currency string

const (
	// CurrencyBs is the reference currency (local bolivares).
	CurrencyBs Currency = "bs"
	// CurrencyUSD is the secondary hard currency.
	CurrencyUSD Currency = "usd"
)

// Reference returns the canonical reference currency.
func Reference() Currency { return CurrencyBs }

// NormalizeCurrency validates and normalizes a currency string.
func NormalizeCurrency(value string) (Currency, bool) {
	switch Currency(value) {
	case CurrencyBs, CurrencyUSD:
		return Currency(value), true
	default:
		return "", false
	}
}
