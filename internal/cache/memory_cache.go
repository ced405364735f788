package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"furnidesk/backend/internal/domain"
)

const defaultMemoryCacheSize = 1024

type memoryEntry struct {
	order   domain.Order
	expires time.Time
}

// MemoryOrderCache is the in-process cache used when no redis is configured.
// It is bounded by an LRU and applies the same version rule as redis.
type MemoryOrderCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

func NewMemoryOrderCache(size int) *MemoryOrderCache {
	if size <= 0 {
		size = defaultMemoryCacheSize
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, memoryEntry](size)
	return &MemoryOrderCache{entries: entries, now: time.Now}
}

func (c *MemoryOrderCache) Get(_ context.Context, orderID string) (*domain.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(orderID)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expires) {
		c.entries.Remove(orderID)
		return nil, false, nil
	}
	order := entry.order
	order.Items = slices.Clone(entry.order.Items)
	return &order, true, nil
}

func (c *MemoryOrderCache) Set(_ context.Context, order *domain.Order, ttl time.Duration) error {
	if order == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if existing, ok := c.entries.Peek(order.ID); ok && now.Before(existing.expires) && existing.order.Version > order.Version {
		return nil
	}
	stored := *order
	stored.Items = slices.Clone(order.Items)
	c.entries.Add(order.ID, memoryEntry{order: stored, expires: now.Add(ttl)})
	return nil
}

func (c *MemoryOrderCache) Invalidate(_ context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(orderID)
	return nil
}
