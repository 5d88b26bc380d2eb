// Package money computes document totals in integer minor units.
//
// Amounts are int64 minor units (cents for USD). Tax rates are percentages held as
// decimal.Decimal so that rates such as 7.25 never pass through float64.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrInvalidPrice     = errors.New("invalid_price")
	ErrInvalidRate      = errors.New("invalid_rate")
	ErrInvalidTax       = errors.New("invalid_tax")
	ErrInvalidTaxRate   = errors.New("invalid_tax_rate")
	ErrInvalidItems     = errors.New("invalid_items")
	ErrAmountOutOfRange = errors.New("invalid_amount")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(maxAmount)
)

// maxAmount keeps every sum well inside int64 after further additions.
const maxAmount int64 = 1 << 53

// Line is a priced row taxed at the document rate.
type Line struct {
	Quantity  int64
	UnitPrice int64
}

// TaxedLine is a priced row that carries its own absolute tax amount.
type TaxedLine struct {
	Quantity int64
	Rate     int64
	Tax      int64
}

type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}
