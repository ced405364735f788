package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Provenance string

const (
	ProvenanceComputed Provenance = "computed"
	ProvenanceCaller   Provenance = "caller"
)

// TotalsProvenance records which path produced each stored aggregate.
type TotalsProvenance struct {
	OriginalPrice  Provenance `json:"original_price"`
	DiscountAmount Provenance `json:"discount_amount"`
	FinalPrice     Provenance `json:"final_price"`
}

// Version starts at 1 and increases with every committed header update.
type Order struct {
	ID                string           `json:"id"`
	CustomerID        string           `json:"customer_id"`
	QuoteID           string           `json:"quote_id,omitempty"`
	Status            OrderStatus      `json:"status"`
	OriginalPrice     decimal.Decimal  `json:"original_price"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount"`
	FinalPrice        decimal.Decimal  `json:"final_price"`
	FreightCharges    decimal.Decimal  `json:"freight_charges"`
	TaxPercentage     decimal.Decimal  `json:"tax_percentage"`
	TaxAmount         decimal.Decimal  `json:"tax_amount"`
	TaxableAmount     decimal.Decimal  `json:"taxable_amount"`
	GrandTotal        decimal.Decimal  `json:"grand_total"`
	FinanceProvider   string           `json:"finance_provider,omitempty"`
	FinancePlanMonths int              `json:"finance_plan_months,omitempty"`
	FinanceFee        decimal.Decimal  `json:"finance_fee"`
	TotalsProvenance  TotalsProvenance `json:"totals_provenance"`
	Version           int64            `json:"version"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Items             []LineItem       `json:"items"`
}

// LineItem is one row per distinct product within an order. Exactly one of
// ProductID (catalog) and CustomProductID (custom-configured) is set.
type LineItem struct {
	ID                 string          `json:"id"`
	OrderID            string          `json:"order_id"`
	ProductID          string          `json:"product_id,omitempty"`
	CustomProductID    string          `json:"custom_product_id,omitempty"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	FinalPrice         decimal.Decimal `json:"final_price"`
	SupplierID         string          `json:"supplier_id,omitempty"`
	CostPrice          decimal.Decimal `json:"cost_price"`
	ProductName        string          `json:"product_name,omitempty"`
	SKU                string          `json:"sku,omitempty"`
	Variant            string          `json:"variant,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// LineItemInput is a caller-supplied line item. Nil fields are "omitted":
// on update they fall back to the persisted value, on insert they are zero.
type LineItemInput struct {
	ProductID          *string          `json:"product_id,omitempty"`
	CustomProductID    *string          `json:"custom_product_id,omitempty"`
	Quantity           *int             `json:"quantity,omitempty"`
	UnitPrice          *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	CostPrice          *decimal.Decimal `json:"cost_price,omitempty"`
	SupplierID         *string          `json:"supplier_id,omitempty"`
	ProductName        *string          `json:"product_name,omitempty"`
	SKU                *string          `json:"sku,omitempty"`
	Variant            *string          `json:"variant,omitempty"`
}

// OrderOverrides are optional order-level values supplied by the caller.
// Supplied values win over engine-derived ones.
type OrderOverrides struct {
	OriginalPrice            *decimal.Decimal `json:"original_price,omitempty"`
	DiscountAmount           *decimal.Decimal `json:"discount_amount,omitempty"`
	FinalPrice               *decimal.Decimal `json:"final_price,omitempty"`
	GlobalDiscountPercentage *decimal.Decimal `json:"global_discount_percentage,omitempty"`
	GlobalDiscountAmount     *decimal.Decimal `json:"global_discount_amount,omitempty"`
	FreightCharges           *decimal.Decimal `json:"freight_charges,omitempty"`
	TaxPercentage            *decimal.Decimal `json:"tax_percentage,omitempty"`
	TaxAmount                *decimal.Decimal `json:"tax_amount,omitempty"`
	GrandTotal               *decimal.Decimal `json:"grand_total,omitempty"`
	FinanceProvider          *string          `json:"finance_provider,omitempty"`
	FinancePlanMonths        *int             `json:"finance_plan_months,omitempty"`
	FinanceFee               *decimal.Decimal `json:"finance_fee,omitempty"`
}

type UpdateOrderRequest struct {
	OrderID string          `json:"-"`
	Status  OrderStatus     `json:"status"`
	Items   []LineItemInput `json:"items"`
	OrderOverrides
}

// ReconciliationSummary tells the caller what an update actually did,
// including deletes that were refused because downstream records still
// reference the row.
type ReconciliationSummary struct {
	Updated         int      `json:"updated"`
	Inserted        int      `json:"inserted"`
	Deleted         int      `json:"deleted"`
	RetainedItemIDs []string `json:"retained_item_ids"`
	DroppedItems    int      `json:"dropped_items"`
	DeliveryCreated bool     `json:"delivery_created"`
}

type UpdateOrderResponse struct {
	Order          Order                 `json:"order"`
	Reconciliation ReconciliationSummary `json:"reconciliation"`
}

type CreateOrderRequest struct {
	CustomerID string          `json:"customer_id"`
	Status     OrderStatus     `json:"status,omitempty"`
	Items      []LineItemInput `json:"items"`
	OrderOverrides
}

type OrderResponse struct {
	Order        Order `json:"order"`
	DroppedItems int   `json:"dropped_items"`
}

type QuoteStatus string

const (
	QuoteStatusOpen      QuoteStatus = "open"
	QuoteStatusConverted QuoteStatus = "converted"
)

type QuoteItem struct {
	ProductID          string          `json:"product_id,omitempty"`
	CustomProductID    string          `json:"custom_product_id,omitempty"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	CostPrice          decimal.Decimal `json:"cost_price"`
	SupplierID         string          `json:"supplier_id,omitempty"`
	ProductName        string          `json:"product_name,omitempty"`
	SKU                string          `json:"sku,omitempty"`
	Variant            string          `json:"variant,omitempty"`
}

// Input converts a persisted quote row into the same shape callers submit.
func (q QuoteItem) Input() LineItemInput {
	in := LineItemInput{
		Quantity:           intPtr(q.Quantity),
		UnitPrice:          decimalPtr(q.UnitPrice),
		DiscountPercentage: decimalPtr(q.DiscountPercentage),
		CostPrice:          decimalPtr(q.CostPrice),
		SupplierID:         stringPtr(q.SupplierID),
		ProductName:        stringPtr(q.ProductName),
		SKU:                stringPtr(q.SKU),
		Variant:            stringPtr(q.Variant),
	}
	if q.ProductID != "" {
		in.ProductID = stringPtr(q.ProductID)
	}
	if q.CustomProductID != "" {
		in.CustomProductID = stringPtr(q.CustomProductID)
	}
	return in
}

type Quote struct {
	ID                       string          `json:"id"`
	CustomerID               string          `json:"customer_id"`
	Status                   QuoteStatus     `json:"status"`
	OrderID                  string          `json:"order_id,omitempty"`
	GlobalDiscountPercentage decimal.Decimal `json:"global_discount_percentage"`
	FreightCharges           decimal.Decimal `json:"freight_charges"`
	Items                    []QuoteItem     `json:"items"`
	CreatedAt                time.Time       `json:"created_at"`
}

type DeliveryStatus string

const DeliveryStatusPending DeliveryStatus = "pending"

type Delivery struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"order_id"`
	Status    DeliveryStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

type ItemReturnRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type ItemReturn struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ItemID    string    `json:"item_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

type AuditLog struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	ActorUsername string    `json:"actor_username"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func intPtr(v int) *int { return &v }

func decimalPtr(v decimal.Decimal) *decimal.Decimal { return &v }
