// Package pricing derives line and order monetary amounts. All amounts are
// rounded to currency precision (2 decimals).
package pricing

import (
	"github.com/shopspring/decimal"

	"furnidesk/backend/internal/domain"
)

const currencyPlaces = 2

var hundred = decimal.NewFromInt(100)

type LineAmounts struct {
	Total    decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
}

// Money rounds v to currency precision, the scale prices are stored at.
func Money(v decimal.Decimal) decimal.Decimal {
	return v.Round(currencyPlaces)
}

// Line computes line_total = unit_price * quantity and
// line_discount = line_total * discount_percentage / 100.
func Line(quantity int, unitPrice decimal.Decimal, discountPercentage decimal.Decimal) LineAmounts {
	if quantity < 0 {
		quantity = 0
	}
	total := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(currencyPlaces)
	discount := decimal.Zero
	if discountPercentage.IsPositive() {
		discount = total.Mul(discountPercentage).Div(hundred).Round(currencyPlaces)
	}
	return LineAmounts{
		Total:    total,
		Discount: discount,
		Final:    total.Sub(discount),
	}
}

// PriceItem refreshes the derived DiscountAmount and FinalPrice of item.
func PriceItem(item *domain.LineItem) {
	amounts := Line(item.Quantity, item.UnitPrice, item.DiscountPercentage)
	item.DiscountAmount = amounts.Discount
	item.FinalPrice = amounts.Final
}

type Totals struct {
	Subtotal       decimal.Decimal
	LineDiscounts  decimal.Decimal
	GlobalDiscount decimal.Decimal
	OriginalPrice  decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
	TaxableAmount  decimal.Decimal
	Provenance     domain.TotalsProvenance
}

// Aggregate recomputes order totals from the final item set. A supplied
// override for original_price, discount_amount or final_price is stored
// verbatim and the derived value is only used when the caller omits it.
func Aggregate(items []domain.LineItem, overrides domain.OrderOverrides) Totals {
	var t Totals
	for _, item := range items {
		amounts := Line(item.Quantity, item.UnitPrice, item.DiscountPercentage)
		t.Subtotal = t.Subtotal.Add(amounts.Total)
		t.LineDiscounts = t.LineDiscounts.Add(amounts.Discount)
	}

	if pct := nonNegative(overrides.GlobalDiscountPercentage); pct.IsPositive() {
		t.GlobalDiscount = t.Subtotal.Mul(pct).Div(hundred).Round(currencyPlaces)
	}
	t.GlobalDiscount = t.GlobalDiscount.Add(nonNegative(overrides.GlobalDiscountAmount).Round(currencyPlaces))

	t.OriginalPrice, t.Provenance.OriginalPrice = pick(overrides.OriginalPrice, t.Subtotal)

	computedDiscount := t.LineDiscounts.Add(t.GlobalDiscount)
	if computedDiscount.GreaterThan(t.OriginalPrice) {
		computedDiscount = decimal.Max(t.OriginalPrice, decimal.Zero)
	}
	t.DiscountAmount, t.Provenance.DiscountAmount = pick(overrides.DiscountAmount, computedDiscount)

	t.FinalPrice, t.Provenance.FinalPrice = pick(overrides.FinalPrice, t.OriginalPrice.Sub(t.DiscountAmount).Round(currencyPlaces))
	t.TaxableAmount = t.FinalPrice
	return t
}

// Apply writes totals and the pass-through fields onto order. Pass-through
// fields the caller omitted keep their stored value.
func Apply(order *domain.Order, t Totals, overrides domain.OrderOverrides) {
	order.OriginalPrice = t.OriginalPrice
	order.DiscountAmount = t.DiscountAmount
	order.FinalPrice = t.FinalPrice
	order.TaxableAmount = t.TaxableAmount
	order.TotalsProvenance = t.Provenance

	if overrides.FreightCharges != nil {
		order.FreightCharges = *overrides.FreightCharges
	}
	if overrides.TaxPercentage != nil {
		order.TaxPercentage = *overrides.TaxPercentage
	}
	if overrides.TaxAmount != nil {
		order.TaxAmount = *overrides.TaxAmount
	}
	if overrides.GrandTotal != nil {
		order.GrandTotal = *overrides.GrandTotal
	}
	if overrides.FinanceProvider != nil {
		order.FinanceProvider = *overrides.FinanceProvider
	}
	if overrides.FinancePlanMonths != nil {
		order.FinancePlanMonths = *overrides.FinancePlanMonths
	}
	if overrides.FinanceFee != nil {
		order.FinanceFee = *overrides.FinanceFee
	}
}

func pick(supplied *decimal.Decimal, computed decimal.Decimal) (decimal.Decimal, domain.Provenance) {
	if supplied != nil {
		return *supplied, domain.ProvenanceCaller
	}
	return computed, domain.ProvenanceComputed
}

func nonNegative(v *decimal.Decimal) decimal.Decimal {
	if v == nil || v.IsNegative() {
		return decimal.Zero
	}
	return *v
}
