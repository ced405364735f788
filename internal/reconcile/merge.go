package reconcile

import (
	"github.com/shopspring/decimal"

	"furnidesk/backend/internal/domain"
)

// Merged is the identity-keyed view of an incoming item list. Keys keeps
// first-seen order so downstream writes are deterministic.
type Merged struct {
	Keys    []Key
	Items   map[Key]domain.LineItemInput
	Dropped int
}

func (m Merged) Len() int {
	return len(m.Keys)
}

// Merge folds items sharing an identity into one. Quantities add up and the
// unit price becomes the quantity-weighted average rounded to 2 decimals.
// The discount percentage is always the first-seen item's, even when that
// item omits it. Other omitted fields are taken from later items.
// Items without a resolvable identity are dropped and counted.
func Merge(items []domain.LineItemInput) Merged {
	merged := Merged{
		Keys:  make([]Key, 0, len(items)),
		Items: make(map[Key]domain.LineItemInput, len(items)),
	}

	for _, item := range items {
		key, err := ResolveInput(item)
		if err != nil {
			merged.Dropped++
			continue
		}

		first, exists := merged.Items[key]
		if !exists {
			merged.Keys = append(merged.Keys, key)
			merged.Items[key] = item
			continue
		}
		merged.Items[key] = fold(first, item)
	}

	return merged
}

func fold(first domain.LineItemInput, next domain.LineItemInput) domain.LineItemInput {
	q1, q2 := quantity(first.Quantity), quantity(next.Quantity)
	p1, p2 := amount(first.UnitPrice), amount(next.UnitPrice)

	totalQty := q1 + q2
	price := p1
	if totalQty > 0 {
		weighted := p1.Mul(decimal.NewFromInt(int64(q1))).Add(p2.Mul(decimal.NewFromInt(int64(q2))))
		price = weighted.Div(decimal.NewFromInt(int64(totalQty))).Round(2)
	}

	out := first
	out.Quantity = &totalQty
	out.UnitPrice = &price
	if out.CostPrice == nil {
		out.CostPrice = next.CostPrice
	}
	if out.SupplierID == nil {
		out.SupplierID = next.SupplierID
	}
	if out.ProductName == nil {
		out.ProductName = next.ProductName
	}
	if out.SKU == nil {
		out.SKU = next.SKU
	}
	if out.Variant == nil {
		out.Variant = next.Variant
	}
	return out
}

func quantity(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

func amount(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
