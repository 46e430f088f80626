/*
Package ledger records retail sales exactly once.

PURPOSE:
  The sale ledger is the append-only source of truth for committed sales.
  It validates a proposed sale, computes its totals, decrements inventory
  and appends the result, all as one logical step keyed by the client's
  idempotency key (clientRequestId).

KEY CONCEPTS IN THIS FILE (types.go):
  - Sale: immutable record of a committed transaction
  - SaleItem: line snapshot (name, prices, VAT) taken at sale time
  - Creator: snapshot of the staff member who rang up the sale
  - CreateSaleRequest: the inbound proposal

LIFECYCLE (per clientRequestId):
  Unseen ──CreateSaleIdempotent──▶ Committed (terminal)

  There is no pending state. A second request with the same key returns
  the committed sale untouched, whatever its payload says.

SEE ALSO:
  - ledger.go: The commit sequence
  - store.go: Persistence interface
  - money/money.go: Totals calculation
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/sale-ledger/catalog"
	"github.com/warp/sale-ledger/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SaleID string

// =============================================================================
// SALE - Immutable once committed
// =============================================================================

// Creator is a snapshot of the staff member at sale time.
type Creator struct {
	ID   string
	Name string
	Role string
}

// SaleItem is a denormalized line. Later renames or repricing of the
// product never change a committed sale.
type SaleItem struct {
	ProductID     catalog.ProductID
	Name          string
	Qty           int
	UnitSalePrice decimal.Decimal
	UnitCostPrice decimal.Decimal
	VatRate       decimal.Decimal
}

func (i SaleItem) line() money.Line {
	return money.Line{
		Qty:           i.Qty,
		UnitSalePrice: i.UnitSalePrice,
		UnitCostPrice: i.UnitCostPrice,
		VatRate:       i.VatRate,
	}
}

// Lines converts items to calculator input.
func Lines(items []SaleItem) []money.Line {
	lines := make([]money.Line, len(items))
	for i, item := range items {
		lines[i] = item.line()
	}
	return lines
}

type Sale struct {
	ID              SaleID
	ClientRequestID string
	CreatedAt       time.Time
	CreatedBy       Creator

	PaymentType  money.PaymentType
	PosFeeType   money.FeeType
	PosFeeValue  decimal.Decimal
	PosFeeAmount decimal.Decimal

	TotalRevenue decimal.Decimal
	TotalCost    decimal.Decimal
	TotalVat     decimal.Decimal
	NetProfit    decimal.Decimal

	Items []SaleItem

	// Warnings records non-fatal problems met while committing, such as a
	// line whose product no longer exists in the catalog.
	Warnings []string
}

// SoldQty returns the number of units across all lines.
func (s Sale) SoldQty() int {
	n := 0
	for _, item := range s.Items {
		n += item.Qty
	}
	return n
}

// Clone returns a deep copy so callers cannot mutate stored slices.
func (s Sale) Clone() Sale {
	s.Items = append([]SaleItem(nil), s.Items...)
	s.Warnings = append([]string(nil), s.Warnings...)
	return s
}

// =============================================================================
// REQUEST
// =============================================================================

// CreateSaleRequest is a proposed sale. Totals are never taken from the
// client; the ledger computes them.
type CreateSaleRequest struct {
	ClientRequestID string
	CreatedBy       Creator
	PaymentType     money.PaymentType
	PosFeeType      money.FeeType
	PosFeeValue     decimal.Decimal
	Items           []SaleItem
}
