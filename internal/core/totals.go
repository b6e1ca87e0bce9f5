package core

import (
	"github.com/shopspring/decimal"
)

// SurchargeTaxRate is the fixed tax rate (percent) applied to loading and freight.
var SurchargeTaxRate = decimal.NewFromInt(18)

var hundred = decimal.NewFromInt(100)

// Totals is the financial summary of an order list.
type Totals struct {
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	Subtotal     decimal.Decimal `json:"subtotal"` // lines + loading + freight
	LineTax      decimal.Decimal `json:"line_tax"`
	SurchargeTax decimal.Decimal `json:"surcharge_tax"`
	TaxTotal     decimal.Decimal `json:"tax_total"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	// RoundedTotal is GrandTotal floored to a whole currency unit.
	RoundedTotal decimal.Decimal `json:"rounded_total"`
	// RoundOff is RoundedTotal - GrandTotal, never positive.
	RoundOff decimal.Decimal `json:"round_off"`
}

// ComputeTotals returns subtotal, tax and grand total for lines plus surcharges.
// Surcharges are not taxed at line level; they contribute SurchargeTaxRate of their sum
// to the tax total.
func ComputeTotals(lines []OrderLine, s Surcharges) Totals {
	var t Totals
	for _, l := range lines {
		amt := l.Amount()
		t.LineSubtotal = t.LineSubtotal.Add(amt)
		t.LineTax = t.LineTax.Add(amt.Mul(l.TaxRate).Div(hundred))
	}
	surcharge := s.Loading.Add(s.Freight)
	t.Subtotal = t.LineSubtotal.Add(surcharge)
	t.SurchargeTax = surcharge.Mul(SurchargeTaxRate).Div(hundred)
	t.TaxTotal = t.LineTax.Add(t.SurchargeTax)
	t.GrandTotal = t.Subtotal.Add(t.TaxTotal)
	t.RoundedTotal = t.GrandTotal.Floor()
	t.RoundOff = t.RoundedTotal.Sub(t.GrandTotal)
	return t
}

// ComputeMilestoneAmounts splits grandTotal by the five milestone percentages.
// It does not check that the percentages sum to 100.
func ComputeMilestoneAmounts(grandTotal decimal.Decimal, split PaymentSplit) [5]decimal.Decimal {
	var out [5]decimal.Decimal
	for i, pct := range split {
		out[i] = grandTotal.Mul(pct).Div(hundred)
	}
	return out
}

// Sum returns the sum of the milestone percentages.
func (p PaymentSplit) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, pct := range p {
		sum = sum.Add(pct)
	}
	return sum
}

// IsSet reports whether any milestone percentage is non-zero.
func (p PaymentSplit) IsSet() bool {
	return !p.Sum().IsZero()
}

// ValidatePaymentSplit checks that the percentages are non-negative and sum to
// exactly 0 (unset) or 100.
func ValidatePaymentSplit(split PaymentSplit) error {
	for i, pct := range split {
		if pct.IsNegative() {
			return validationErrorf(CodePaymentSplit, "milestone %d percentage cannot be negative", i+1)
		}
	}
	sum := split.Sum()
	if !sum.IsZero() && !sum.Equal(hundred) {
		return validationErrorf(CodePaymentSplit, "payment split must sum to 0 or 100, got %s", sum.String())
	}
	return nil
}

// RequireCompleteSplit checks that the split sums to exactly 100. Export and print
// are gated on it.
func RequireCompleteSplit(split PaymentSplit) error {
	if err := ValidatePaymentSplit(split); err != nil {
		return err
	}
	if !split.Sum().Equal(hundred) {
		return validationErrorf(CodePaymentSplit, "payment split is not set; percentages must total 100")
	}
	return nil
}
