package ledger

import (
	"context"

	"github.com/warp/sale-ledger/catalog"
)

// Store persists committed sales.
// IMPORTANT: append-only. No Update, no Delete.
type Store interface {
	// Append persists a sale and indexes its ClientRequestID.
	// Returns ErrDuplicateIdempotencyKey if the key is already stored.
	Append(ctx context.Context, sale Sale) error

	// GetByClientRequestID looks up the idempotency index.
	// found is false when the key has never been committed.
	GetByClientRequestID(ctx context.Context, clientRequestID string) (sale Sale, found bool, err error)

	// Get returns a sale by id or ErrSaleNotFound.
	Get(ctx context.Context, id SaleID) (Sale, error)

	// Recent returns sales most-recent-first. limit <= 0 returns all.
	Recent(ctx context.Context, limit int) ([]Sale, error)
}

// TxStore is a Store that can run the commit sequence inside one database
// transaction. fn receives a sales store and a catalog bound to that
// transaction; returning an error rolls both back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(sales Store, inventory catalog.Catalog) error) error
}
