package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders minor units as a major-unit string, e.g. 11000 USD -> "USD 110.00".
func Format(amount int64, currency string) string {
	value := decimal.New(amount, -2).StringFixed(2)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return value
	}
	return currency + " " + value
}

// FormatRate renders a percentage without trailing zeros.
func FormatRate(rate decimal.Decimal) string {
	return rate.String() + "%"
}
