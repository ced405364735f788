package cache

import (
	"context"
	"time"

	"furnidesk/backend/internal/domain"
)

// OrderCache holds copies of orders with their items. Writers store the
// committed order after every change. Set keeps an entry whose Version is
// higher than the order offered, so a reader that loaded the order before a
// commit cannot replace the newer copy.
type OrderCache interface {
	Get(ctx context.Context, orderID string) (*domain.Order, bool, error)
	Set(ctx context.Context, order *domain.Order, ttl time.Duration) error
	Invalidate(ctx context.Context, orderID string) error
}

type NoopOrderCache struct{}

func (NoopOrderCache) Get(_ context.Context, _ string) (*domain.Order, bool, error) {
	return nil, false, nil
}

func (NoopOrderCache) Set(_ context.Context, _ *domain.Order, _ time.Duration) error {
	return nil
}

func (NoopOrderCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
