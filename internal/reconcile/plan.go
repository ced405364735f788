package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"furnidesk/backend/internal/domain"
	"furnidesk/backend/internal/pricing"
	"furnidesk/backend/internal/store"
)

// Plan is the transient diff of one reconciliation call.
type Plan struct {
	ToUpdate []domain.LineItem
	ToInsert []domain.LineItem
	ToDelete []domain.LineItem
}

// BuildPlan diffs merged incoming items against the persisted items of
// orderID. Updates keep the persisted row id and fall back to the persisted
// value for every field the caller omitted. Persisted rows sharing an
// identity with an earlier row are scheduled for deletion so the identity
// stays unique within the order.
func BuildPlan(orderID string, merged Merged, persisted []domain.LineItem, newID func() string, now time.Time) Plan {
	existing := make(map[Key]domain.LineItem, len(persisted))
	plan := Plan{}

	for _, item := range persisted {
		key, err := ResolveItem(item)
		if err != nil {
			continue
		}
		if _, dup := existing[key]; dup {
			plan.ToDelete = append(plan.ToDelete, item)
			continue
		}
		existing[key] = item
	}

	for _, key := range merged.Keys {
		incoming := merged.Items[key]
		if current, ok := existing[key]; ok {
			updated := Materialize(current, incoming)
			updated.UpdatedAt = now
			plan.ToUpdate = append(plan.ToUpdate, updated)
			continue
		}

		row := Materialize(domain.LineItem{
			ID:        newID(),
			OrderID:   orderID,
			CreatedAt: now,
		}, incoming)
		row.UpdatedAt = now
		plan.ToInsert = append(plan.ToInsert, row)
	}

	for _, item := range persisted {
		key, err := ResolveItem(item)
		if err != nil {
			continue
		}
		if current, ok := existing[key]; !ok || current.ID != item.ID {
			continue
		}
		if _, ok := merged.Items[key]; !ok {
			plan.ToDelete = append(plan.ToDelete, item)
		}
	}

	return plan
}

// Materialize overlays the supplied fields of in onto base and recomputes the
// derived line amounts. Supplied prices are rounded to currency precision
// first, so the stored unit price and final price agree.
func Materialize(base domain.LineItem, in domain.LineItemInput) domain.LineItem {
	out := base
	if in.ProductID != nil {
		out.ProductID = *in.ProductID
	}
	if in.CustomProductID != nil {
		out.CustomProductID = *in.CustomProductID
	}
	if in.Quantity != nil {
		out.Quantity = quantity(in.Quantity)
	}
	if in.UnitPrice != nil {
		out.UnitPrice = pricing.Money(*in.UnitPrice)
	}
	if in.DiscountPercentage != nil {
		out.DiscountPercentage = *in.DiscountPercentage
	}
	if in.CostPrice != nil {
		out.CostPrice = pricing.Money(*in.CostPrice)
	}
	if in.SupplierID != nil {
		out.SupplierID = *in.SupplierID
	}
	if in.ProductName != nil {
		out.ProductName = *in.ProductName
	}
	if in.SKU != nil {
		out.SKU = *in.SKU
	}
	if in.Variant != nil {
		out.Variant = *in.Variant
	}
	pricing.PriceItem(&out)
	return out
}

const (
	StepUpdate = "update_items"
	StepInsert = "insert_items"
	StepDelete = "delete_items"
)

// ApplyError reports the step at which applying a plan failed.
type ApplyError struct {
	Step   string
	ItemID string
	Err    error
}

func (e *ApplyError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s: item %s: %v", e.Step, e.ItemID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

type ItemWriter interface {
	UpdateOrderItem(ctx context.Context, item domain.LineItem) error
	InsertOrderItems(ctx context.Context, items []domain.LineItem) error
	DeleteOrderItem(ctx context.Context, orderID string, itemID string) error
}

type Outcome struct {
	Updated  int
	Inserted int
	Deleted  int
	Retained []domain.LineItem
}

// Apply writes plan through w. Update and insert failures abort. A delete
// refused with store.ErrReferentialConflict leaves the row in place and is
// reported in Outcome.Retained.
func Apply(ctx context.Context, w ItemWriter, plan Plan) (Outcome, error) {
	var outcome Outcome

	for _, item := range plan.ToUpdate {
		if err := w.UpdateOrderItem(ctx, item); err != nil {
			return outcome, &ApplyError{Step: StepUpdate, ItemID: item.ID, Err: err}
		}
		outcome.Updated++
	}

	if len(plan.ToInsert) > 0 {
		if err := w.InsertOrderItems(ctx, plan.ToInsert); err != nil {
			return outcome, &ApplyError{Step: StepInsert, Err: err}
		}
		outcome.Inserted = len(plan.ToInsert)
	}

	for _, item := range plan.ToDelete {
		err := w.DeleteOrderItem(ctx, item.OrderID, item.ID)
		switch {
		case err == nil:
			outcome.Deleted++
		case errors.Is(err, store.ErrReferentialConflict):
			outcome.Retained = append(outcome.Retained, item)
		default:
			return outcome, &ApplyError{Step: StepDelete, ItemID: item.ID, Err: err}
		}
	}

	return outcome, nil
}
