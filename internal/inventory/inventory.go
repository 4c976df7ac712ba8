// Package inventory decides whether a product can be sold in a given size
// and describes stock decrements applied after a confirmed payment.
package inventory

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/triplebarrelracing/storefront/internal/models"
)

var (
	ErrOutOfStock    = errors.New("out of stock")
	ErrSizeRequired  = errors.New("size is required for this product")
	ErrUnknownSize   = errors.New("size is not offered for this product")
	ErrInvalidAmount = errors.New("quantity must be positive")
)

// Request is a single stock decrement. Size is empty for flat products.
// Storage applies it conditionally: it succeeds only when the current count
// covers Quantity, otherwise it fails with ErrOutOfStock and nothing changes.
type Request struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
}

// NormalizeSize trims the requested size and drops it for flat products.
func NormalizeSize(product *models.Product, size string) string {
	if product.StockModel() == models.StockFlat {
		return ""
	}
	return strings.TrimSpace(size)
}

// Check reports whether one unit is currently available. It is a soft
// check; the authoritative guard is the conditional decrement.
func Check(product *models.Product, size string) error {
	return CheckQuantity(product, size, 1)
}

func CheckQuantity(product *models.Product, size string, qty int) error {
	if qty <= 0 {
		return ErrInvalidAmount
	}

	if product.StockModel() == models.StockFlat {
		if product.Stock < qty {
			return ErrOutOfStock
		}
		return nil
	}

	size = strings.TrimSpace(size)
	if size == "" {
		return ErrSizeRequired
	}
	count, ok := product.Sizes[size]
	if !ok {
		return ErrUnknownSize
	}
	if count < qty {
		return ErrOutOfStock
	}
	return nil
}

func Available(product *models.Product, size string) bool {
	return Check(product, size) == nil
}

// NewRequest builds a decrement for an order line.
func NewRequest(item models.LineItem) Request {
	return Request{ProductID: item.ProductID, Size: item.Size, Quantity: item.Quantity}
}
