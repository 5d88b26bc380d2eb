package money

import (
	"github.com/shopspring/decimal"
)

// LineTotal returns quantity × unitPrice.
func LineTotal(quantity, unitPrice int64) (int64, error) {
	if quantity < 1 {
		return 0, ErrInvalidQuantity
	}
	if unitPrice < 0 {
		return 0, ErrInvalidPrice
	}
	return multiply(quantity, unitPrice)
}

// TaxedLineTotal returns quantity × rate + tax.
func TaxedLineTotal(line TaxedLine) (int64, error) {
	if line.Quantity < 1 {
		return 0, ErrInvalidQuantity
	}
	if line.Rate < 0 {
		return 0, ErrInvalidRate
	}
	if line.Tax < 0 {
		return 0, ErrInvalidTax
	}
	base, err := multiply(line.Quantity, line.Rate)
	if err != nil {
		return 0, err
	}
	return add(base, line.Tax)
}

// Calculate sums the lines and applies one tax rate percentage to the subtotal.
func Calculate(lines []Line, taxRate decimal.Decimal) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, ErrInvalidItems
	}
	if err := ValidateTaxRate(taxRate); err != nil {
		return Totals{}, err
	}

	var subtotal int64
	for _, line := range lines {
		amount, err := LineTotal(line.Quantity, line.UnitPrice)
		if err != nil {
			return Totals{}, err
		}
		if subtotal, err = add(subtotal, amount); err != nil {
			return Totals{}, err
		}
	}

	return ApplyTaxRate(subtotal, taxRate)
}

// CalculateWithItemTax sums quantity × rate into the subtotal and the absolute
// per-line tax amounts into the tax.
func CalculateWithItemTax(lines []TaxedLine) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, ErrInvalidItems
	}

	var totals Totals
	for _, line := range lines {
		if _, err := TaxedLineTotal(line); err != nil {
			return Totals{}, err
		}
		base, err := multiply(line.Quantity, line.Rate)
		if err != nil {
			return Totals{}, err
		}
		if totals.Subtotal, err = add(totals.Subtotal, base); err != nil {
			return Totals{}, err
		}
		if totals.Tax, err = add(totals.Tax, line.Tax); err != nil {
			return Totals{}, err
		}
	}

	total, err := add(totals.Subtotal, totals.Tax)
	if err != nil {
		return Totals{}, err
	}
	totals.Total = total
	return totals, nil
}

// ApplyTaxRate recomputes tax and total for an existing subtotal.
func ApplyTaxRate(subtotal int64, taxRate decimal.Decimal) (Totals, error) {
	if subtotal < 0 || subtotal > maxAmount {
		return Totals{}, ErrAmountOutOfRange
	}
	if err := ValidateTaxRate(taxRate); err != nil {
		return Totals{}, err
	}

	tax := decimal.NewFromInt(subtotal).Mul(taxRate).Div(hundred).Round(0).IntPart()
	total, err := add(subtotal, tax)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Subtotal: subtotal, Tax: tax, Total: total}, nil
}

// ValidateTaxRate accepts percentages in [0, 100].
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return ErrInvalidTaxRate
	}
	return nil
}

// ImpliedTaxRate reverse-derives the percentage that produced tax from subtotal.
// Invoices do not store their rate, so an item-only update reuses this ratio.
// A zero subtotal yields a zero rate.
func ImpliedTaxRate(subtotal, tax int64) decimal.Decimal {
	if subtotal <= 0 || tax <= 0 {
		return decimal.Zero
	}
	rate := decimal.NewFromInt(tax).Mul(hundred).DivRound(decimal.NewFromInt(subtotal), 8)
	if rate.GreaterThan(hundred) {
		return hundred
	}
	return rate
}

func multiply(a, b int64) (int64, error) {
	product := decimal.NewFromInt(a).Mul(decimal.NewFromInt(b))
	if product.GreaterThan(maxMinor) {
		return 0, ErrAmountOutOfRange
	}
	return product.IntPart(), nil
}

func add(a, b int64) (int64, error) {
	sum := a + b
	if sum > maxAmount || sum < 0 {
		return 0, ErrAmountOutOfRange
	}
	return sum, nil
}
