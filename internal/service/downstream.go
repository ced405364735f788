package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"furnidesk/backend/internal/domain"
	"furnidesk/backend/internal/store"
	"furnidesk/backend/internal/xid"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

func (s *Service) GetDelivery(ctx context.Context, orderID string) (domain.Delivery, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Delivery{}, validationError("order id is required")
	}
	delivery, err := s.repo.GetDelivery(ctx, orderID)
	if err != nil {
		return domain.Delivery{}, err
	}
	return *delivery, nil
}

// RecordItemReturn registers a customer return against a line item. The
// return keeps the line item from being deleted by later order edits.
func (s *Service) RecordItemReturn(ctx context.Context, orderID string, req domain.ItemReturnRequest) (domain.ItemReturn, error) {
	orderID = strings.TrimSpace(orderID)
	req.ItemID = strings.TrimSpace(req.ItemID)
	req.Reason = strings.TrimSpace(req.Reason)
	if orderID == "" || req.ItemID == "" {
		return domain.ItemReturn{}, validationError("order id and item id are required")
	}
	if req.Quantity < 1 {
		return domain.ItemReturn{}, validationError("quantity must be at least 1")
	}

	release, err := s.lock(ctx, orderID)
	if err != nil {
		return domain.ItemReturn{}, err
	}
	defer s.release(orderID, release)

	var created *domain.ItemReturn
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		if _, err := tx.GetOrderForUpdate(ctx, orderID); err != nil {
			return err
		}
		items, err := tx.ListOrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(items, func(item domain.LineItem) bool { return item.ID == req.ItemID })
		if idx < 0 {
			return store.ErrNotFound
		}
		if req.Quantity > items[idx].Quantity {
			return validationError("return quantity %d exceeds ordered quantity %d", req.Quantity, items[idx].Quantity)
		}

		created, err = tx.CreateItemReturn(ctx, domain.ItemReturn{
			ID:        xid.New("ret"),
			OrderID:   orderID,
			ItemID:    req.ItemID,
			Quantity:  req.Quantity,
			Reason:    req.Reason,
			CreatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return domain.ItemReturn{}, err
	}

	s.logAudit(ctx, orderID, "item.return", "order_item", req.ItemID, fmt.Sprintf("qty=%d,reason=%s", req.Quantity, req.Reason))
	return *created, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, orderID string, limit int) ([]domain.AuditLog, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, validationError("order id is required")
	}
	if limit < 1 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	return s.repo.ListAuditLogs(ctx, orderID, limit)
}
