/*
Package catalog owns products and their stock on hand.

PURPOSE:
  The catalog is the only component allowed to change a product's stock.
  The sale ledger calls DecrementStock while committing a sale; everything
  else reads.

INVARIANTS:
  1. StockOnHand >= 0 at all times. Decrements clamp at zero.
  2. A decrement for an unknown product is a no-op, never an error. Sales
     carry denormalized line data and must not be blocked by it.
  3. UpdateMetadata never touches stock.

IMPLEMENTATIONS:
  - catalog.Memory: in-process map guarded by a mutex
  - store/sqlite: single-statement UPDATE with MAX(0, ...)

SEE ALSO:
  - ledger/ledger.go: The only caller of DecrementStock
  - seed.go: YAML product seeding
*/
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRODUCT
// =============================================================================

type ProductID string

type Product struct {
	ID            ProductID
	Name          string
	Category      string // optional
	SalePrice     decimal.Decimal
	CostPrice     decimal.Decimal
	VatRate       decimal.Decimal // fraction, e.g. 0.20
	StockOnHand   int
	CriticalStock int
	IsActive      bool
	UpdatedAt     time.Time
}

// IsLowStock reports whether stock has fallen to the critical level.
func (p Product) IsLowStock() bool {
	return p.StockOnHand <= p.CriticalStock
}

// MetadataUpdate carries the fields editable outside the sale path.
// Nil fields are left unchanged.
type MetadataUpdate struct {
	Name          *string
	Category      *string
	SalePrice     *decimal.Decimal
	CostPrice     *decimal.Decimal
	VatRate       *decimal.Decimal
	CriticalStock *int
	IsActive      *bool
}

// Apply returns p with the non-nil fields of u applied.
func (u MetadataUpdate) Apply(p Product) Product {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.SalePrice != nil {
		p.SalePrice = *u.SalePrice
	}
	if u.CostPrice != nil {
		p.CostPrice = *u.CostPrice
	}
	if u.VatRate != nil {
		p.VatRate = *u.VatRate
	}
	if u.CriticalStock != nil {
		p.CriticalStock = *u.CriticalStock
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	return p
}

// =============================================================================
// CATALOG
// =============================================================================

var (
	// ErrProductNotFound is returned by direct lookups of an unknown id.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidProduct is returned when registering a malformed product.
	ErrInvalidProduct = errors.New("invalid product")
)

// Catalog is the inventory read/write interface.
type Catalog interface {
	// Get returns the product or ErrProductNotFound.
	Get(ctx context.Context, id ProductID) (Product, error)

	// DecrementStock sets stock to max(0, stock-qty) and bumps UpdatedAt.
	// Returns false (and no error) when the product does not exist.
	DecrementStock(ctx context.Context, id ProductID, qty int) (bool, error)

	// ListActive returns active products in insertion order.
	ListActive(ctx context.Context) ([]Product, error)

	// ListLowStock returns active products at or below their critical level.
	ListLowStock(ctx context.Context) ([]Product, error)

	// Upsert registers a product or replaces an existing one in place.
	Upsert(ctx context.Context, p Product) error

	// UpdateMetadata edits non-stock fields.
	UpdateMetadata(ctx context.Context, id ProductID, u MetadataUpdate) (Product, error)
}

// Validate checks the structural rules every stored product obeys.
func Validate(p Product) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	case p.StockOnHand < 0:
		return fmt.Errorf("%w: stock on hand must be >= 0 (got %d)", ErrInvalidProduct, p.StockOnHand)
	case p.SalePrice.IsNegative() || p.CostPrice.IsNegative():
		return fmt.Errorf("%w: prices must be >= 0", ErrInvalidProduct)
	case p.VatRate.IsNegative():
		return fmt.Errorf("%w: vat rate must be >= 0", ErrInvalidProduct)
	}
	return nil
}

// FilterLowStock keeps active products at or below their critical level.
func FilterLowStock(products []Product) []Product {
	var low []Product
	for _, p := range products {
		if p.IsActive && p.IsLowStock() {
			low = append(low, p)
		}
	}
	return low
}
