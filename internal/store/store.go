package store

import (
	"context"
	"errors"

	"furnidesk/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrReferentialConflict is returned when a row cannot be deleted because
	// a downstream record (return, delivery, invoice) still references it.
	ErrReferentialConflict = errors.New("referenced by downstream records")
	ErrQuoteConverted      = errors.New("quote already converted")
)

// Repository is the persistence gateway for orders and their collaborators.
// WithinTx runs fn against a transactional view; calling WithinTx on that
// view joins the running transaction.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	// GetOrder returns the order header. Items come from ListOrderItems.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// GetOrderWithItems returns the header and its items read from one
	// consistent snapshot.
	GetOrderWithItems(ctx context.Context, id string) (*domain.Order, error)
	// GetOrderForUpdate loads the order and holds a row lock until the
	// enclosing transaction ends.
	GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) error

	ListOrderItems(ctx context.Context, orderID string) ([]domain.LineItem, error)
	UpdateOrderItem(ctx context.Context, item domain.LineItem) error
	InsertOrderItems(ctx context.Context, items []domain.LineItem) error
	DeleteOrderItem(ctx context.Context, orderID string, itemID string) error

	// EnsureDelivery creates the delivery for delivery.OrderID unless one
	// already exists. created reports whether this call inserted it.
	EnsureDelivery(ctx context.Context, delivery domain.Delivery) (result *domain.Delivery, created bool, err error)
	GetDelivery(ctx context.Context, orderID string) (*domain.Delivery, error)

	CreateQuote(ctx context.Context, quote domain.Quote) (*domain.Quote, error)
	GetQuote(ctx context.Context, id string) (*domain.Quote, error)
	MarkQuoteConverted(ctx context.Context, quoteID string, orderID string) error

	CreateItemReturn(ctx context.Context, itemReturn domain.ItemReturn) (*domain.ItemReturn, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, orderID string, limit int) ([]domain.AuditLog, error)
}
