package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnidesk/backend/internal/domain"
	"furnidesk/backend/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newWithDB(db), mock
}

func TestDeleteOrderItemToleratedInsideTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT delete_order_item")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items")).
		WithArgs("item-b", "ord-1").
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})
	mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT delete_order_item")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT delete_order_item")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items")).
		WithArgs("item-c", "ord-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT delete_order_item")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx store.Repository) error {
		err := tx.DeleteOrderItem(ctx, "ord-1", "item-b")
		assert.ErrorIs(t, err, store.ErrReferentialConflict)
		return tx.DeleteOrderItem(ctx, "ord-1", "item-c")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOrderItemOutsideTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items")).
		WithArgs("item-x", "ord-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteOrderItem(context.Background(), "ord-1", "item-x")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE order_items")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx store.Repository) error {
		return tx.UpdateOrderItem(ctx, domain.LineItem{ID: "item-a", OrderID: "ord-1", ProductID: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(10)})
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderForUpdateRequiresTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.GetOrderForUpdate(context.Background(), "ord-1")
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderForUpdateScansRow(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_id", "quote_id", "status",
			"original_price", "discount_amount", "final_price", "freight_charges",
			"tax_percentage", "tax_amount", "taxable_amount", "grand_total",
			"finance_provider", "finance_plan_months", "finance_fee",
			"original_price_source", "discount_amount_source", "final_price_source",
			"version", "created_at", "updated_at",
		}).AddRow(
			"ord-1", "cust-1", "", "pending",
			"450.00", "40.00", "410.00", "75.00",
			"8", "32.80", "410.00", "517.80",
			"", 0, "0",
			"computed", "caller", "computed",
			3, created, created,
		))
	mock.ExpectCommit()

	var order *domain.Order
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx store.Repository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, "ord-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, domain.ProvenanceCaller, order.TotalsProvenance.DiscountAmount)
	assert.Equal(t, int64(3), order.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDeliveryCreates(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (order_id) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "status", "created_at"}).
			AddRow("dlv-1", "ord-1", "pending", now))

	delivery, created, err := s.EnsureDelivery(context.Background(), domain.Delivery{ID: "dlv-1", OrderID: "ord-1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.DeliveryStatusPending, delivery.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDeliveryReturnsExistingOnConflict(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (order_id) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "status", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM deliveries")).
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "status", "created_at"}).
			AddRow("dlv-existing", "ord-1", "pending", now))

	delivery, created, err := s.EnsureDelivery(context.Background(), domain.Delivery{OrderID: "ord-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "dlv-existing", delivery.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkQuoteConvertedTwice(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE quotes")).
		WithArgs("quote-1", "converted", "ord-2", "open").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("quote-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.MarkQuoteConverted(context.Background(), "quote-1", "ord-2")
	assert.ErrorIs(t, err, store.ErrQuoteConverted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateItemReturnUnknownItem(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO item_returns")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.CreateItemReturn(context.Background(), domain.ItemReturn{OrderID: "ord-1", ItemID: "nope", Quantity: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderWithItemsReadsOneSnapshot(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_id", "quote_id", "status",
			"original_price", "discount_amount", "final_price", "freight_charges",
			"tax_percentage", "tax_amount", "taxable_amount", "grand_total",
			"finance_provider", "finance_plan_months", "finance_fee",
			"original_price_source", "discount_amount_source", "final_price_source",
			"version", "created_at", "updated_at",
		}).AddRow(
			"ord-1", "cust-1", "", "draft",
			"250.00", "0", "250.00", "0",
			"0", "0", "250.00", "250.00",
			"", 0, "0",
			"computed", "computed", "computed",
			2, created, created,
		))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items")).
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "product_id", "custom_product_id",
			"quantity", "unit_price", "discount_percentage", "discount_amount", "final_price",
			"supplier_id", "cost_price", "product_name", "sku", "variant",
			"created_at", "updated_at",
		}).
			AddRow("item-a", "ord-1", "A", "", 2, "100.00", "0", "0", "200.00", "", "0", "", "", "", created, created).
			AddRow("item-b", "ord-1", "B", "", 1, "50.00", "0", "0", "50.00", "", "0", "", "", "", created, created))
	mock.ExpectCommit()

	order, err := s.GetOrderWithItems(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), order.Version)
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].FinalPrice.Add(order.Items[1].FinalPrice).Equal(order.FinalPrice))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderWithItemsMissingOrderRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := s.GetOrderWithItems(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDeliveryFailureKeepsTransactionUsable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT ensure_delivery")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (order_id) DO NOTHING")).
		WillReturnError(&pgconn.PgError{Code: "42P01"})
	mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT ensure_delivery")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx store.Repository) error {
		_, created, err := tx.EnsureDelivery(ctx, domain.Delivery{OrderID: "ord-1"})
		assert.Error(t, err)
		assert.False(t, created)
		return tx.CreateAuditLog(ctx, domain.AuditLog{OrderID: "ord-1", Action: "order.update"})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
