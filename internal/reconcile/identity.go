// Package reconcile turns a caller-supplied line item list into the minimal
// set of changes against the persisted items of an order.
package reconcile

import (
	"errors"
	"strings"

	"furnidesk/backend/internal/domain"
)

var ErrUnresolvableIdentity = errors.New("line item must reference exactly one of product_id or custom_product_id")

// Key identifies a line item within an order: "catalog:<id>" or "custom:<id>".
type Key string

const (
	catalogPrefix = "catalog:"
	customPrefix  = "custom:"
)

func ResolveInput(item domain.LineItemInput) (Key, error) {
	return resolve(deref(item.ProductID), deref(item.CustomProductID))
}

func ResolveItem(item domain.LineItem) (Key, error) {
	return resolve(item.ProductID, item.CustomProductID)
}

func resolve(productID string, customProductID string) (Key, error) {
	productID = strings.TrimSpace(productID)
	customProductID = strings.TrimSpace(customProductID)

	switch {
	case productID != "" && customProductID == "":
		return Key(catalogPrefix + productID), nil
	case customProductID != "" && productID == "":
		return Key(customPrefix + customProductID), nil
	default:
		return "", ErrUnresolvableIdentity
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
