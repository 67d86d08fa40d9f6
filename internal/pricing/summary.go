// Package pricing derives cart totals and delivery fees. Everything here is
// pure: no I/O, no clock, same input same output.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"autoparts-checkout/internal/domain"
)

// Coercion records a line item whose price could not be parsed and was
// counted as zero.
type Coercion struct {
	Index     int
	ProductID string
	Raw       domain.Price
}

// NormalizePrice parses a raw price. ok is false when the value is not a
// number, in which case the returned price is zero. Thousands separators
// and surrounding spaces are tolerated since the catalog renders prices for
// display.
func NormalizePrice(raw domain.Price) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(raw))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Inspect sums the line prices and reports every coerced item.
func Inspect(items []domain.CartLineItem) (domain.CartSummary, []Coercion) {
	var coerced []Coercion
	subtotal := decimal.Zero
	for i, it := range items {
		p, ok := NormalizePrice(it.Price)
		if !ok {
			coerced = append(coerced, Coercion{Index: i, ProductID: it.ProductID, Raw: it.Price})
			continue
		}
		subtotal = subtotal.Add(p)
	}
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	v := subtotal.InexactFloat64()
	return domain.CartSummary{Subtotal: v, Total: v}, coerced
}

// Summarize is Inspect without the coercion report.
func Summarize(items []domain.CartLineItem) domain.CartSummary {
	s, _ := Inspect(items)
	return s
}

// ChargeAmount is what the customer pays: subtotal minus discount plus the
// delivery fee, floored at zero.
func ChargeAmount(summary domain.CartSummary, discount, fee float64) float64 {
	amt := decimal.NewFromFloat(summary.Total).
		Sub(decimal.NewFromFloat(discount)).
		Add(decimal.NewFromFloat(fee))
	if amt.IsNegative() {
		return 0
	}
	return amt.Round(2).InexactFloat64()
}
