package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"furnidesk/backend/internal/domain"
	"furnidesk/backend/internal/store"
	"furnidesk/backend/internal/xid"
)

//go:embed schema.sql
var schema string

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the postgres gateway. A Store returned by WithinTx is bound to
// the transaction; its q is the *sql.Tx.
type Store struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newWithDB(db), nil
}

func newWithDB(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repository) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &Store{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

const orderColumns = `
	id, customer_id, COALESCE(quote_id, ''), status,
	original_price, discount_amount, final_price, freight_charges,
	tax_percentage, tax_amount, taxable_amount, grand_total,
	COALESCE(finance_provider, ''), finance_plan_months, finance_fee,
	original_price_source, discount_amount_source, final_price_source,
	version, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.QuoteID, &o.Status,
		&o.OriginalPrice, &o.DiscountAmount, &o.FinalPrice, &o.FreightCharges,
		&o.TaxPercentage, &o.TaxAmount, &o.TaxableAmount, &o.GrandTotal,
		&o.FinanceProvider, &o.FinancePlanMonths, &o.FinanceFee,
		&o.TotalsProvenance.OriginalPrice, &o.TotalsProvenance.DiscountAmount, &o.TotalsProvenance.FinalPrice,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return scanOrder(s.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// GetOrderWithItems reads the header and the items under one snapshot. Outside
// a transaction it opens a read-only REPEATABLE READ transaction so a
// concurrent commit cannot land between the two reads.
func (s *Store) GetOrderWithItems(ctx context.Context, id string) (*domain.Order, error) {
	if s.tx != nil {
		return s.getOrderWithItems(ctx, id)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := (&Store{db: s.db, q: tx, tx: tx}).getOrderWithItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) getOrderWithItems(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.ListOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *Store) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	if s.tx == nil {
		return nil, fmt.Errorf("get order for update outside transaction: %w", store.ErrInvalidTransaction)
	}
	return scanOrder(s.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.CustomerID) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	if order.Version < 1 {
		order.Version = 1
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = xid.New("item")
		}
		order.Items[i].OrderID = order.ID
		if order.Items[i].CreatedAt.IsZero() {
			order.Items[i].CreatedAt = order.CreatedAt
		}
		if order.Items[i].UpdatedAt.IsZero() {
			order.Items[i].UpdatedAt = order.Items[i].CreatedAt
		}
	}

	err := s.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		tx := repo.(*Store)
		_, err := tx.q.ExecContext(ctx, `
			INSERT INTO orders (
				id, customer_id, quote_id, status,
				original_price, discount_amount, final_price, freight_charges,
				tax_percentage, tax_amount, taxable_amount, grand_total,
				finance_provider, finance_plan_months, finance_fee,
				original_price_source, discount_amount_source, final_price_source,
				version, created_at, updated_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		`, order.ID, order.CustomerID, nullIfEmpty(order.QuoteID), string(order.Status),
			order.OriginalPrice, order.DiscountAmount, order.FinalPrice, order.FreightCharges,
			order.TaxPercentage, order.TaxAmount, order.TaxableAmount, order.GrandTotal,
			nullIfEmpty(order.FinanceProvider), order.FinancePlanMonths, order.FinanceFee,
			provenance(order.TotalsProvenance.OriginalPrice), provenance(order.TotalsProvenance.DiscountAmount), provenance(order.TotalsProvenance.FinalPrice),
			order.Version, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrInvalidTransaction
			}
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		return tx.InsertOrderItems(ctx, order.Items)
	})
	if err != nil {
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) error {
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
			original_price = $3, discount_amount = $4, final_price = $5, freight_charges = $6,
			tax_percentage = $7, tax_amount = $8, taxable_amount = $9, grand_total = $10,
			finance_provider = $11, finance_plan_months = $12, finance_fee = $13,
			original_price_source = $14, discount_amount_source = $15, final_price_source = $16,
			updated_at = $17, version = $18
		WHERE id = $1
	`, order.ID, string(order.Status),
		order.OriginalPrice, order.DiscountAmount, order.FinalPrice, order.FreightCharges,
		order.TaxPercentage, order.TaxAmount, order.TaxableAmount, order.GrandTotal,
		nullIfEmpty(order.FinanceProvider), order.FinancePlanMonths, order.FinanceFee,
		provenance(order.TotalsProvenance.OriginalPrice), provenance(order.TotalsProvenance.DiscountAmount), provenance(order.TotalsProvenance.FinalPrice),
		order.UpdatedAt, order.Version)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, order_id, COALESCE(product_id, ''), COALESCE(custom_product_id, ''),
			quantity, unit_price, discount_percentage, discount_amount, final_price,
			COALESCE(supplier_id, ''), cost_price, COALESCE(product_name, ''), COALESCE(sku, ''), COALESCE(variant, ''),
			created_at, updated_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0, 16)
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.CustomProductID,
			&item.Quantity, &item.UnitPrice, &item.DiscountPercentage, &item.DiscountAmount, &item.FinalPrice,
			&item.SupplierID, &item.CostPrice, &item.ProductName, &item.SKU, &item.Variant,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.CreatedAt = item.CreatedAt.UTC()
		item.UpdatedAt = item.UpdatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateOrderItem(ctx context.Context, item domain.LineItem) error {
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE order_items
		SET product_id = $3, custom_product_id = $4, quantity = $5, unit_price = $6,
			discount_percentage = $7, discount_amount = $8, final_price = $9,
			supplier_id = $10, cost_price = $11, product_name = $12, sku = $13, variant = $14,
			updated_at = $15
		WHERE id = $1 AND order_id = $2
	`, item.ID, item.OrderID, nullIfEmpty(item.ProductID), nullIfEmpty(item.CustomProductID), item.Quantity, item.UnitPrice,
		item.DiscountPercentage, item.DiscountAmount, item.FinalPrice,
		nullIfEmpty(item.SupplierID), item.CostPrice, nullIfEmpty(item.ProductName), nullIfEmpty(item.SKU), nullIfEmpty(item.Variant),
		item.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) InsertOrderItems(ctx context.Context, items []domain.LineItem) error {
	now := time.Now().UTC()
	for _, item := range items {
		if item.ID == "" || item.OrderID == "" {
			return store.ErrInvalidTransaction
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.CreatedAt
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, custom_product_id, quantity, unit_price,
				discount_percentage, discount_amount, final_price,
				supplier_id, cost_price, product_name, sku, variant,
				created_at, updated_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		`, item.ID, item.OrderID, nullIfEmpty(item.ProductID), nullIfEmpty(item.CustomProductID), item.Quantity, item.UnitPrice,
			item.DiscountPercentage, item.DiscountAmount, item.FinalPrice,
			nullIfEmpty(item.SupplierID), item.CostPrice, nullIfEmpty(item.ProductName), nullIfEmpty(item.SKU), nullIfEmpty(item.Variant),
			item.CreatedAt, item.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrInvalidTransaction
			}
			if isForeignKeyViolation(err) {
				return store.ErrNotFound
			}
			return err
		}
	}
	return nil
}

// DeleteOrderItem maps a foreign key violation to store.ErrReferentialConflict.
// Inside a transaction the delete runs under a savepoint so a refused delete
// does not abort the rest of the transaction.
func (s *Store) DeleteOrderItem(ctx context.Context, orderID string, itemID string) error {
	return s.savepoint(ctx, "delete_order_item", func() error {
		return s.deleteOrderItem(ctx, orderID, itemID)
	})
}

// savepoint runs fn under a named savepoint when s is bound to a transaction
// and rolls back to it when fn fails, leaving the transaction usable.
func (s *Store) savepoint(ctx context.Context, name string, fn func() error) error {
	if s.tx == nil {
		return fn()
	}

	if _, err := s.q.ExecContext(ctx, `SAVEPOINT `+name); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := s.q.ExecContext(ctx, `ROLLBACK TO SAVEPOINT `+name); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	_, err := s.q.ExecContext(ctx, `RELEASE SAVEPOINT `+name)
	return err
}

func (s *Store) deleteOrderItem(ctx context.Context, orderID string, itemID string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, orderID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("delete item %s: %w", itemID, store.ErrReferentialConflict)
		}
		return err
	}
	return requireAffected(res)
}

// EnsureDelivery inside a transaction runs under a savepoint, so a failed
// insert leaves the enclosing order update intact.
func (s *Store) EnsureDelivery(ctx context.Context, delivery domain.Delivery) (result *domain.Delivery, created bool, err error) {
	err = s.savepoint(ctx, "ensure_delivery", func() error {
		var innerErr error
		result, created, innerErr = s.ensureDelivery(ctx, delivery)
		return innerErr
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (s *Store) ensureDelivery(ctx context.Context, delivery domain.Delivery) (*domain.Delivery, bool, error) {
	if delivery.ID == "" {
		delivery.ID = xid.New("dlv")
	}
	if delivery.Status == "" {
		delivery.Status = domain.DeliveryStatusPending
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	var created domain.Delivery
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO deliveries (id, order_id, status, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, order_id, status, created_at
	`, delivery.ID, delivery.OrderID, string(delivery.Status), delivery.CreatedAt).Scan(&created.ID, &created.OrderID, &created.Status, &created.CreatedAt)
	switch {
	case err == nil:
		created.CreatedAt = created.CreatedAt.UTC()
		return &created, true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, err := s.GetDelivery(ctx, delivery.OrderID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case isForeignKeyViolation(err):
		return nil, false, store.ErrNotFound
	default:
		return nil, false, err
	}
}

func (s *Store) GetDelivery(ctx context.Context, orderID string) (*domain.Delivery, error) {
	var d domain.Delivery
	err := s.q.QueryRowContext(ctx, `
		SELECT id, order_id, status, created_at
		FROM deliveries
		WHERE order_id = $1
	`, orderID).Scan(&d.ID, &d.OrderID, &d.Status, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

func (s *Store) CreateQuote(ctx context.Context, quote domain.Quote) (*domain.Quote, error) {
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

	err := s.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		tx := repo.(*Store)
		_, err := tx.q.ExecContext(ctx, `
			INSERT INTO quotes (id, customer_id, status, order_id, global_discount_percentage, freight_charges, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, quote.ID, quote.CustomerID, string(quote.Status), nullIfEmpty(quote.OrderID), quote.GlobalDiscountPercentage, quote.FreightCharges, quote.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrInvalidTransaction
			}
			return err
		}
		for i, item := range quote.Items {
			_, err = tx.q.ExecContext(ctx, `
				INSERT INTO quote_items (
					quote_id, position, product_id, custom_product_id, quantity, unit_price,
					discount_percentage, cost_price, supplier_id, product_name, sku, variant
				)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			`, quote.ID, i, nullIfEmpty(item.ProductID), nullIfEmpty(item.CustomProductID), item.Quantity, item.UnitPrice,
				item.DiscountPercentage, item.CostPrice, nullIfEmpty(item.SupplierID), nullIfEmpty(item.ProductName), nullIfEmpty(item.SKU), nullIfEmpty(item.Variant))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	created := quote
	return &created, nil
}

func (s *Store) GetQuote(ctx context.Context, id string) (*domain.Quote, error) {
	var quote domain.Quote
	err := s.q.QueryRowContext(ctx, `
		SELECT id, customer_id, status, COALESCE(order_id, ''), global_discount_percentage, freight_charges, created_at
		FROM quotes
		WHERE id = $1
	`, id).Scan(&quote.ID, &quote.CustomerID, &quote.Status, &quote.OrderID, &quote.GlobalDiscountPercentage, &quote.FreightCharges, &quote.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	quote.CreatedAt = quote.CreatedAt.UTC()

	rows, err := s.q.QueryContext(ctx, `
		SELECT COALESCE(product_id, ''), COALESCE(custom_product_id, ''), quantity, unit_price,
			discount_percentage, cost_price, COALESCE(supplier_id, ''), COALESCE(product_name, ''),
			COALESCE(sku, ''), COALESCE(variant, '')
		FROM quote_items
		WHERE quote_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quote.Items = make([]domain.QuoteItem, 0, 8)
	for rows.Next() {
		var item domain.QuoteItem
		if err := rows.Scan(&item.ProductID, &item.CustomProductID, &item.Quantity, &item.UnitPrice,
			&item.DiscountPercentage, &item.CostPrice, &item.SupplierID, &item.ProductName,
			&item.SKU, &item.Variant); err != nil {
			return nil, err
		}
		quote.Items = append(quote.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *Store) MarkQuoteConverted(ctx context.Context, quoteID string, orderID string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE quotes
		SET status = $2, order_id = $3
		WHERE id = $1 AND status = $4
	`, quoteID, string(domain.QuoteStatusConverted), orderID, string(domain.QuoteStatusOpen))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := s.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM quotes WHERE id = $1)`, quoteID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrQuoteConverted
}

func (s *Store) CreateItemReturn(ctx context.Context, itemReturn domain.ItemReturn) (*domain.ItemReturn, error) {
	if itemReturn.ID == "" {
		itemReturn.ID = xid.New("ret")
	}
	if itemReturn.CreatedAt.IsZero() {
		itemReturn.CreatedAt = time.Now().UTC()
	}
	if itemReturn.Quantity < 1 {
		return nil, store.ErrInvalidTransaction
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO item_returns (id, order_id, item_id, quantity, reason, created_at)
		SELECT $1, order_id, id, $4, $5, $6
		FROM order_items
		WHERE id = $3 AND order_id = $2
	`, itemReturn.ID, itemReturn.OrderID, itemReturn.ItemID, itemReturn.Quantity, nullIfEmpty(itemReturn.Reason), itemReturn.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	created := itemReturn
	return &created, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO audit_logs (id, order_id, actor_username, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, nullIfEmpty(entry.OrderID), entry.ActorUsername, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, orderID string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, COALESCE(order_id, ''), actor_username, action, entity_type, entity_id, COALESCE(detail, ''), created_at
		FROM audit_logs
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.ActorUsername, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

func provenance(p domain.Provenance) string {
	if p == "" {
		return string(domain.ProvenanceComputed)
	}
	return string(p)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
