package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"furnidesk/backend/internal/domain"
	"furnidesk/backend/internal/pricing"
	"furnidesk/backend/internal/reconcile"
	"furnidesk/backend/internal/store"
	"furnidesk/backend/internal/xid"
)

// UpdateOrder reconciles the caller's item list against the persisted items,
// recomputes the order totals and, when the status changed to anything but
// cancelled, makes sure a delivery exists. The whole read-modify-write runs
// under the order lock and inside one store transaction. A failed delivery
// insert is logged and does not roll back the order update.
func (s *Service) UpdateOrder(ctx context.Context, req domain.UpdateOrderRequest) (resp domain.UpdateOrderResponse, err error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return resp, validationError("order id is required")
	}
	if req.Items == nil {
		return resp, validationError("items is required")
	}
	if len(req.Items) == 0 && !s.opts.AllowEmptyItems {
		return resp, validationError("items must not be empty")
	}
	if req.Status != "" && !req.Status.Valid() {
		return resp, validationError("unknown status %q", req.Status)
	}

	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "orders.UpdateOrder", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int("order.items.incoming", len(req.Items)),
	))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.Reconciled(ctx, outcome, float64(time.Since(started).Microseconds())/1000)
		span.End()
	}()

	release, err := s.lock(ctx, orderID)
	if err != nil {
		return resp, err
	}
	defer s.release(orderID, release)

	merged := reconcile.Merge(req.Items)
	if merged.Dropped > 0 {
		s.logger.Warn("dropped line items without a resolvable product identity",
			zap.String("order_id", orderID),
			zap.Int("dropped", merged.Dropped))
		s.metrics.ItemsDropped(ctx, merged.Dropped, "update")
	}

	var (
		previous domain.OrderStatus
		order    *domain.Order
		outcome  reconcile.Outcome
		delivery *domain.Delivery
		began    bool
	)
	now := s.now()

	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		began = true

		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return &StageError{Stage: StageLoad, Err: err}
		}
		previous = current.Status

		next := req.Status
		if next == "" {
			next = previous
		}
		if !previous.CanTransitionTo(next) {
			if s.opts.StrictTransitions {
				return validationError("status transition %s -> %s is not allowed", previous, next)
			}
			s.logger.Warn("irregular order status transition accepted",
				zap.String("order_id", orderID),
				zap.String("from", string(previous)),
				zap.String("to", string(next)))
		}

		persisted, err := tx.ListOrderItems(ctx, orderID)
		if err != nil {
			return &StageError{Stage: StageLoad, Err: err}
		}

		plan := reconcile.BuildPlan(orderID, merged, persisted, func() string { return xid.New("item") }, now)
		outcome, err = reconcile.Apply(ctx, tx, plan)
		if err != nil {
			var applyErr *reconcile.ApplyError
			if errors.As(err, &applyErr) {
				return &StageError{Stage: applyErr.Step, Err: err}
			}
			return &StageError{Stage: StageUpdateItems, Err: err}
		}

		final, err := tx.ListOrderItems(ctx, orderID)
		if err != nil {
			return &StageError{Stage: StageLoadFinalItems, Err: err}
		}

		totals := pricing.Aggregate(final, req.OrderOverrides)
		pricing.Apply(current, totals, req.OrderOverrides)
		current.Status = next
		current.UpdatedAt = now
		current.Version++
		if err := tx.UpdateOrder(ctx, *current); err != nil {
			return &StageError{Stage: StageUpdateTotals, Err: err}
		}

		if next != previous && next != domain.OrderStatusCancelled {
			delivery = s.ensureDelivery(ctx, tx, orderID, now)
		}

		current.Items = final
		order = current
		return nil
	})
	if err != nil {
		var stageErr *StageError
		if !errors.As(err, &stageErr) && !errors.Is(err, ErrValidation) {
			stage := StageCommit
			if !began {
				stage = StageLoad
			}
			err = &StageError{Stage: stage, Err: err}
		}
		return resp, err
	}

	s.storeInCache(ctx, order)

	summary := domain.ReconciliationSummary{
		Updated:         outcome.Updated,
		Inserted:        outcome.Inserted,
		Deleted:         outcome.Deleted,
		RetainedItemIDs: make([]string, 0, len(outcome.Retained)),
		DroppedItems:    merged.Dropped,
	}
	for _, item := range outcome.Retained {
		summary.RetainedItemIDs = append(summary.RetainedItemIDs, item.ID)
		s.logger.Info("line item delete refused, row retained",
			zap.String("order_id", orderID),
			zap.String("item_id", item.ID))
	}
	s.metrics.DeletesRetained(ctx, len(outcome.Retained))

	if delivery != nil {
		summary.DeliveryCreated = true
		s.metrics.DeliveryCreated(ctx)
		s.logAudit(ctx, orderID, "delivery.create", "delivery", delivery.ID, "status=pending")
	}

	span.SetAttributes(
		attribute.Int("order.items.updated", summary.Updated),
		attribute.Int("order.items.inserted", summary.Inserted),
		attribute.Int("order.items.deleted", summary.Deleted),
		attribute.Int("order.items.retained", len(summary.RetainedItemIDs)),
	)

	s.logAudit(ctx, orderID, "order.update", "order", orderID, fmt.Sprintf(
		"status=%s->%s,updated=%d,inserted=%d,deleted=%d,retained=%d,dropped=%d,final_price=%s",
		previous, order.Status, summary.Updated, summary.Inserted, summary.Deleted,
		len(summary.RetainedItemIDs), summary.DroppedItems, order.FinalPrice.StringFixed(2)))

	return domain.UpdateOrderResponse{Order: *order, Reconciliation: summary}, nil
}

// ensureDelivery upserts the pending delivery for orderID inside the order
// transaction. It returns the delivery only when this call created it. On
// failure the store discards the partial insert and the update carries on.
func (s *Service) ensureDelivery(ctx context.Context, tx store.Repository, orderID string, now time.Time) *domain.Delivery {
	delivery, created, err := tx.EnsureDelivery(ctx, domain.Delivery{
		ID:        xid.New("dlv"),
		OrderID:   orderID,
		Status:    domain.DeliveryStatusPending,
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Error("failed to create delivery", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}
	if !created {
		return nil
	}
	return delivery
}

func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.OrderResponse, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		return domain.OrderResponse{}, validationError("customer id is required")
	}
	if req.Status == "" {
		req.Status = domain.OrderStatusDraft
	}
	if !req.Status.Valid() {
		return domain.OrderResponse{}, validationError("unknown status %q", req.Status)
	}
	if len(req.Items) == 0 && !s.opts.AllowEmptyItems {
		return domain.OrderResponse{}, validationError("items must not be empty")
	}

	order, dropped := s.buildOrder(req.CustomerID, req.Status, "", req.Items, req.OrderOverrides)
	if dropped > 0 {
		s.logger.Warn("dropped line items without a resolvable product identity",
			zap.String("order_id", order.ID),
			zap.Int("dropped", dropped))
		s.metrics.ItemsDropped(ctx, dropped, "create")
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	s.logAudit(ctx, created.ID, "order.create", "order", created.ID, fmt.Sprintf(
		"customer=%s,items=%d,final_price=%s", created.CustomerID, len(created.Items), created.FinalPrice.StringFixed(2)))
	return domain.OrderResponse{Order: *created, DroppedItems: dropped}, nil
}

// ConvertQuote creates an order from an open quote and marks the quote
// converted in the same transaction.
func (s *Service) ConvertQuote(ctx context.Context, quoteID string) (domain.OrderResponse, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return domain.OrderResponse{}, validationError("quote id is required")
	}

	var (
		created *domain.Order
		dropped int
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		quote, err := tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if quote.Status != domain.QuoteStatusOpen {
			return store.ErrQuoteConverted
		}

		inputs := make([]domain.LineItemInput, 0, len(quote.Items))
		for _, item := range quote.Items {
			inputs = append(inputs, item.Input())
		}
		overrides := domain.OrderOverrides{
			GlobalDiscountPercentage: &quote.GlobalDiscountPercentage,
			FreightCharges:           &quote.FreightCharges,
		}

		var order domain.Order
		order, dropped = s.buildOrder(quote.CustomerID, domain.OrderStatusDraft, quote.ID, inputs, overrides)
		created, err = tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		return tx.MarkQuoteConverted(ctx, quote.ID, created.ID)
	})
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if dropped > 0 {
		s.metrics.ItemsDropped(ctx, dropped, "convert")
	}

	s.logAudit(ctx, created.ID, "quote.convert", "quote", quoteID, fmt.Sprintf(
		"order=%s,items=%d,final_price=%s", created.ID, len(created.Items), created.FinalPrice.StringFixed(2)))
	return domain.OrderResponse{Order: *created, DroppedItems: dropped}, nil
}

func (s *Service) buildOrder(customerID string, status domain.OrderStatus, quoteID string, inputs []domain.LineItemInput, overrides domain.OrderOverrides) (domain.Order, int) {
	now := s.now()
	order := domain.Order{
		ID:         xid.New("ord"),
		CustomerID: customerID,
		QuoteID:    quoteID,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	merged := reconcile.Merge(inputs)
	plan := reconcile.BuildPlan(order.ID, merged, nil, func() string { return xid.New("item") }, now)
	order.Items = plan.ToInsert

	totals := pricing.Aggregate(order.Items, overrides)
	pricing.Apply(&order, totals, overrides)
	return order, merged.Dropped
}

// GetOrder reads through the order cache. The header and items come from one
// store snapshot.
func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, validationError("order id is required")
	}

	cached, ok, err := s.cache.Get(ctx, orderID)
	if err != nil {
		s.logger.Warn("order cache read failed", zap.String("order_id", orderID), zap.Error(err))
	}
	if ok && cached != nil {
		return *cached, nil
	}

	order, err := s.repo.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.cache.Set(ctx, order, s.opts.CacheTTL); err != nil {
		s.logger.Warn("order cache write failed", zap.String("order_id", orderID), zap.Error(err))
	}
	return *order, nil
}
