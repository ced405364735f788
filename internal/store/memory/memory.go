package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"furnidesk/backend/internal/domain"
	"furnidesk/backend/internal/store"
	"furnidesk/backend/internal/xid"
)

// Store keeps everything in process memory. A transaction works on a private
// copy of the tables that replaces the committed tables only when fn succeeds,
// so readers never observe a half-applied transaction. Writers, inside or
// outside a transaction, are serialized by txMu. Item returns restrict
// deletion of the line item they reference the way the postgres foreign key
// does.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *tables
}

// tables is the unlocked state. A *tables handed to fn by WithinTx is the
// transactional view and is only touched by the goroutine running fn.
type tables struct {
	ordersByID        map[string]domain.Order
	itemsByOrder      map[string][]domain.LineItem
	deliveriesByOrder map[string]domain.Delivery
	quotesByID        map[string]domain.Quote
	itemReturnsByID   map[string]domain.ItemReturn
	auditLogs         []domain.AuditLog
}

func New() *Store {
	return &Store{data: newTables()}
}

func newTables() *tables {
	return &tables{
		ordersByID:        make(map[string]domain.Order),
		itemsByOrder:      make(map[string][]domain.LineItem),
		deliveriesByOrder: make(map[string]domain.Delivery),
		quotesByID:        make(map[string]domain.Quote),
		itemReturnsByID:   make(map[string]domain.ItemReturn),
	}
}

// NewSeeded returns a store with one open quote for local development.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	s.data.quotesByID["quote-demo-1"] = domain.Quote{
		ID:                       "quote-demo-1",
		CustomerID:               "cust-demo-1",
		Status:                   domain.QuoteStatusOpen,
		GlobalDiscountPercentage: decimal.NewFromInt(5),
		FreightCharges:           decimal.NewFromInt(75),
		Items: []domain.QuoteItem{
			{ProductID: "sofa-3s-grey", Quantity: 1, UnitPrice: decimal.NewFromInt(1299), ProductName: "Three Seater Sofa", SKU: "SOFA-3S-GRY", Variant: "grey"},
			{ProductID: "coffee-table-oak", Quantity: 1, UnitPrice: decimal.NewFromInt(349), DiscountPercentage: decimal.NewFromInt(10), ProductName: "Oak Coffee Table", SKU: "TBL-OAK"},
			{CustomProductID: "custom-wardrobe-77", Quantity: 1, UnitPrice: decimal.NewFromInt(2150), ProductName: "Built-in Wardrobe"},
		},
		CreatedAt: now,
	}
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	staged := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, staged); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = staged
	s.mu.Unlock()
	return nil
}

// read runs fn against the committed tables.
func (s *Store) read(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// write applies fn to the committed tables outside any transaction.
func (s *Store) write(fn func(t *tables)) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

func (s *Store) GetOrder(ctx context.Context, id string) (order *domain.Order, err error) {
	s.read(func(t *tables) { order, err = t.GetOrder(ctx, id) })
	return order, err
}

func (s *Store) GetOrderWithItems(ctx context.Context, id string) (order *domain.Order, err error) {
	s.read(func(t *tables) { order, err = t.GetOrderWithItems(ctx, id) })
	return order, err
}

// GetOrderForUpdate outside a transaction is a plain read.
func (s *Store) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (created *domain.Order, err error) {
	s.write(func(t *tables) { created, err = t.CreateOrder(ctx, order) })
	return created, err
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (err error) {
	s.write(func(t *tables) { err = t.UpdateOrder(ctx, order) })
	return err
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) (items []domain.LineItem, err error) {
	s.read(func(t *tables) { items, err = t.ListOrderItems(ctx, orderID) })
	return items, err
}

func (s *Store) UpdateOrderItem(ctx context.Context, item domain.LineItem) (err error) {
	s.write(func(t *tables) { err = t.UpdateOrderItem(ctx, item) })
	return err
}

func (s *Store) InsertOrderItems(ctx context.Context, items []domain.LineItem) (err error) {
	s.write(func(t *tables) { err = t.InsertOrderItems(ctx, items) })
	return err
}

func (s *Store) DeleteOrderItem(ctx context.Context, orderID string, itemID string) (err error) {
	s.write(func(t *tables) { err = t.DeleteOrderItem(ctx, orderID, itemID) })
	return err
}

func (s *Store) EnsureDelivery(ctx context.Context, delivery domain.Delivery) (result *domain.Delivery, created bool, err error) {
	s.write(func(t *tables) { result, created, err = t.EnsureDelivery(ctx, delivery) })
	return result, created, err
}

func (s *Store) GetDelivery(ctx context.Context, orderID string) (delivery *domain.Delivery, err error) {
	s.read(func(t *tables) { delivery, err = t.GetDelivery(ctx, orderID) })
	return delivery, err
}

func (s *Store) CreateQuote(ctx context.Context, quote domain.Quote) (created *domain.Quote, err error) {
	s.write(func(t *tables) { created, err = t.CreateQuote(ctx, quote) })
	return created, err
}

func (s *Store) GetQuote(ctx context.Context, id string) (quote *domain.Quote, err error) {
	s.read(func(t *tables) { quote, err = t.GetQuote(ctx, id) })
	return quote, err
}

func (s *Store) MarkQuoteConverted(ctx context.Context, quoteID string, orderID string) (err error) {
	s.write(func(t *tables) { err = t.MarkQuoteConverted(ctx, quoteID, orderID) })
	return err
}

func (s *Store) CreateItemReturn(ctx context.Context, itemReturn domain.ItemReturn) (created *domain.ItemReturn, err error) {
	s.write(func(t *tables) { created, err = t.CreateItemReturn(ctx, itemReturn) })
	return created, err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) (err error) {
	s.write(func(t *tables) { err = t.CreateAuditLog(ctx, entry) })
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, orderID string, limit int) (logs []domain.AuditLog, err error) {
	s.read(func(t *tables) { logs, err = t.ListAuditLogs(ctx, orderID, limit) })
	return logs, err
}

// WithinTx on the transactional view joins the running transaction.
func (t *tables) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repository) error) error {
	return fn(ctx, t)
}

func (t *tables) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	order, ok := t.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (t *tables) GetOrderWithItems(ctx context.Context, id string) (*domain.Order, error) {
	order, err := t.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = slices.Clone(t.itemsByOrder[id])
	return order, nil
}

// GetOrderForUpdate relies on WithinTx serializing writers.
func (t *tables) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tables) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.CustomerID) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	if order.Version < 1 {
		order.Version = 1
	}

	if _, exists := t.ordersByID[order.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}

	items := make([]domain.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		if item.ID == "" {
			item.ID = xid.New("item")
		}
		item.OrderID = order.ID
		if item.CreatedAt.IsZero() {
			item.CreatedAt = order.CreatedAt
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.CreatedAt
		}
		items = append(items, item)
	}

	header := order
	header.Items = nil
	t.ordersByID[order.ID] = header
	t.itemsByOrder[order.ID] = items

	created := header
	created.Items = slices.Clone(items)
	return &created, nil
}

func (t *tables) UpdateOrder(_ context.Context, order domain.Order) error {
	current, ok := t.ordersByID[order.ID]
	if !ok {
		return store.ErrNotFound
	}
	order.Items = nil
	order.CreatedAt = current.CreatedAt
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}
	t.ordersByID[order.ID] = order
	return nil
}

func (t *tables) ListOrderItems(_ context.Context, orderID string) ([]domain.LineItem, error) {
	if _, ok := t.ordersByID[orderID]; !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(t.itemsByOrder[orderID]), nil
}

func (t *tables) UpdateOrderItem(_ context.Context, item domain.LineItem) error {
	items := t.itemsByOrder[item.OrderID]
	idx := slices.IndexFunc(items, func(existing domain.LineItem) bool { return existing.ID == item.ID })
	if idx < 0 {
		return store.ErrNotFound
	}
	item.CreatedAt = items[idx].CreatedAt
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	items[idx] = item
	return nil
}

func (t *tables) InsertOrderItems(_ context.Context, items []domain.LineItem) error {
	for _, item := range items {
		if item.ID == "" {
			return store.ErrInvalidTransaction
		}
		if _, ok := t.ordersByID[item.OrderID]; !ok {
			return store.ErrNotFound
		}
		if slices.ContainsFunc(t.itemsByOrder[item.OrderID], func(existing domain.LineItem) bool { return existing.ID == item.ID }) {
			return store.ErrInvalidTransaction
		}
	}

	now := time.Now().UTC()
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.CreatedAt
		}
		t.itemsByOrder[item.OrderID] = append(t.itemsByOrder[item.OrderID], item)
	}
	return nil
}

func (t *tables) DeleteOrderItem(_ context.Context, orderID string, itemID string) error {
	items := t.itemsByOrder[orderID]
	idx := slices.IndexFunc(items, func(existing domain.LineItem) bool { return existing.ID == itemID })
	if idx < 0 {
		return store.ErrNotFound
	}
	for _, ret := range t.itemReturnsByID {
		if ret.ItemID == itemID {
			return fmt.Errorf("delete item %s: %w", itemID, store.ErrReferentialConflict)
		}
	}
	t.itemsByOrder[orderID] = slices.Delete(items, idx, idx+1)
	return nil
}

func (t *tables) EnsureDelivery(_ context.Context, delivery domain.Delivery) (*domain.Delivery, bool, error) {
	if _, ok := t.ordersByID[delivery.OrderID]; !ok {
		return nil, false, store.ErrNotFound
	}
	if existing, ok := t.deliveriesByOrder[delivery.OrderID]; ok {
		return &existing, false, nil
	}
	if delivery.ID == "" {
		delivery.ID = xid.New("dlv")
	}
	if delivery.Status == "" {
		delivery.Status = domain.DeliveryStatusPending
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}
	t.deliveriesByOrder[delivery.OrderID] = delivery
	created := delivery
	return &created, true, nil
}

func (t *tables) GetDelivery(_ context.Context, orderID string) (*domain.Delivery, error) {
	delivery, ok := t.deliveriesByOrder[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &delivery, nil
}

func (t *tables) CreateQuote(_ context.Context, quote domain.Quote) (*domain.Quote, error) {
	if strings.TrimSpace(quote.CustomerID) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if quote.ID == "" {
		quote.ID = xid.New("quote")
	}
	if quote.Status == "" {
		quote.Status = domain.QuoteStatusOpen
	}
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = time.Now().UTC()
	}

	if _, exists := t.quotesByID[quote.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	quote.Items = slices.Clone(quote.Items)
	t.quotesByID[quote.ID] = quote
	created := cloneQuote(quote)
	return &created, nil
}

func (t *tables) GetQuote(_ context.Context, id string) (*domain.Quote, error) {
	quote, ok := t.quotesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneQuote(quote)
	return &found, nil
}

func (t *tables) MarkQuoteConverted(_ context.Context, quoteID string, orderID string) error {
	quote, ok := t.quotesByID[quoteID]
	if !ok {
		return store.ErrNotFound
	}
	if quote.Status != domain.QuoteStatusOpen {
		return store.ErrQuoteConverted
	}
	quote.Status = domain.QuoteStatusConverted
	quote.OrderID = orderID
	t.quotesByID[quoteID] = quote
	return nil
}

func (t *tables) CreateItemReturn(_ context.Context, itemReturn domain.ItemReturn) (*domain.ItemReturn, error) {
	if itemReturn.ID == "" {
		itemReturn.ID = xid.New("ret")
	}
	if itemReturn.CreatedAt.IsZero() {
		itemReturn.CreatedAt = time.Now().UTC()
	}
	if itemReturn.Quantity < 1 {
		return nil, store.ErrInvalidTransaction
	}

	if !slices.ContainsFunc(t.itemsByOrder[itemReturn.OrderID], func(item domain.LineItem) bool { return item.ID == itemReturn.ItemID }) {
		return nil, store.ErrNotFound
	}
	t.itemReturnsByID[itemReturn.ID] = itemReturn
	created := itemReturn
	return &created, nil
}

func (t *tables) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	t.auditLogs = append(t.auditLogs, entry)
	return nil
}

func (t *tables) ListAuditLogs(_ context.Context, orderID string, limit int) ([]domain.AuditLog, error) {
	result := make([]domain.AuditLog, 0, 16)
	for _, entry := range t.auditLogs {
		if orderID != "" && entry.OrderID != orderID {
			continue
		}
		result = append(result, entry)
	}

	slices.SortStableFunc(result, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (t *tables) clone() *tables {
	dup := &tables{
		ordersByID:        make(map[string]domain.Order, len(t.ordersByID)),
		itemsByOrder:      make(map[string][]domain.LineItem, len(t.itemsByOrder)),
		deliveriesByOrder: make(map[string]domain.Delivery, len(t.deliveriesByOrder)),
		quotesByID:        make(map[string]domain.Quote, len(t.quotesByID)),
		itemReturnsByID:   make(map[string]domain.ItemReturn, len(t.itemReturnsByID)),
		auditLogs:         slices.Clone(t.auditLogs),
	}
	for id, order := range t.ordersByID {
		dup.ordersByID[id] = order
	}
	for id, items := range t.itemsByOrder {
		dup.itemsByOrder[id] = slices.Clone(items)
	}
	for id, delivery := range t.deliveriesByOrder {
		dup.deliveriesByOrder[id] = delivery
	}
	for id, quote := range t.quotesByID {
		dup.quotesByID[id] = cloneQuote(quote)
	}
	for id, ret := range t.itemReturnsByID {
		dup.itemReturnsByID[id] = ret
	}
	return dup
}

func cloneQuote(src domain.Quote) domain.Quote {
	dup := src
	dup.Items = slices.Clone(src.Items)
	return dup
}
