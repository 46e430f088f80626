/*
ledger.go - Idempotent commit of retail sales

CRITICAL INVARIANTS:
  1. EXACTLY ONCE: one Sale per clientRequestId, ever. Retries with the same
     key get the original Sale back, even if the payload changed.
  2. APPEND-ONLY: committed sales are never updated or deleted.
  3. NO PARTIAL COMMIT: either validation fails before anything changes, or
     totals + stock decrements + append + index all happen.
  4. STOCK IS NEVER LOST: decrements run inside the ledger's critical
     section and the catalog applies each one atomically.

COMMIT SEQUENCE:
  key, items? ──▶ lock ──▶ index hit? ──yes──▶ return stored sale
                               │no
                               ▼
               validate qty, payment, fee, prices
               build sale (id, time, totals)
                            ▼
               decrement stock per line (missing product → warning)
                            ▼
               append + index ──▶ unlock ──▶ return sale

  With a TxStore the decrement and append run in one database transaction.

CONCURRENCY:
  A single ledger-wide mutex covers the index check through the append.
  Two concurrent calls with the same key serialize; the second finds the
  first one's sale in the index. A Store must be owned by exactly one
  Ledger.

SEE ALSO:
  - store.go: Persistence interface
  - money/money.go: Totals
  - catalog/catalog.go: Stock decrements
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/sale-ledger/catalog"
	"github.com/warp/sale-ledger/logging"
	"github.com/warp/sale-ledger/metrics"
	"github.com/warp/sale-ledger/money"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	mu      sync.Mutex
	store   Store
	catalog catalog.Catalog

	now     func() time.Time
	newID   func() SaleID
	logger  *zap.Logger
	metrics *metrics.Recorder
}

type Option func(*Ledger)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides sale id generation.
func WithIDGenerator(fn func() SaleID) Option {
	return func(l *Ledger) { l.newID = fn }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(l *Ledger) { l.metrics = r }
}

// New creates a ledger over store and inventory. When store is a TxStore
// the commit uses the catalog view it hands out instead of inventory.
func New(store Store, inventory catalog.Catalog, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		catalog: inventory,
		now:     time.Now,
		newID:   func() SaleID { return SaleID(uuid.NewString()) },
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CommitResult is a committed sale plus whether it came from the index.
type CommitResult struct {
	Sale     Sale
	Replayed bool
}

// CreateSaleIdempotent commits req once per ClientRequestID and returns the
// committed sale.
func (l *Ledger) CreateSaleIdempotent(ctx context.Context, req CreateSaleRequest) (Sale, error) {
	res, err := l.Commit(ctx, req)
	if err != nil {
		return Sale{}, err
	}
	return res.Sale, nil
}

// Commit is CreateSaleIdempotent that also reports replays.
func (l *Ledger) Commit(ctx context.Context, req CreateSaleRequest) (CommitResult, error) {
	log := logging.FromContext(ctx, l.logger).With(zap.String("client_request_id", req.ClientRequestID))

	if err := validateShape(req); err != nil {
		return CommitResult{}, l.rejected(log, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, found, err := l.store.GetByClientRequestID(ctx, req.ClientRequestID)
	if err != nil {
		return CommitResult{}, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if found {
		l.metrics.SaleReplayed()
		log.Debug("sale replayed from idempotency index", zap.String("sale_id", string(existing.ID)))
		return CommitResult{Sale: existing, Replayed: true}, nil
	}

	// A retry of a committed key replays even when its lines or payment
	// drifted into something invalid; only new sales get the full rules.
	if err := Validate(req); err != nil {
		return CommitResult{}, l.rejected(log, err)
	}

	sale := l.build(req)

	if ts, ok := l.store.(TxStore); ok {
		err = ts.WithTx(ctx, func(sales Store, inventory catalog.Catalog) error {
			return l.apply(ctx, sales, inventory, &sale)
		})
	} else {
		err = l.apply(ctx, l.store, l.catalog, &sale)
	}
	if err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			// Another writer shares this store. Its sale wins.
			log.Error("idempotency key committed outside this ledger", zap.Error(err))
			if stored, ok, lookupErr := l.store.GetByClientRequestID(ctx, req.ClientRequestID); lookupErr == nil && ok {
				return CommitResult{Sale: stored, Replayed: true}, nil
			}
		}
		return CommitResult{}, fmt.Errorf("failed to commit sale: %w", err)
	}

	l.metrics.SaleCommitted(string(sale.PaymentType), money.Float(sale.TotalRevenue))
	l.metrics.DecrementMissed(len(sale.Warnings))
	log.Info("sale committed",
		zap.String("sale_id", string(sale.ID)),
		zap.String("payment_type", string(sale.PaymentType)),
		zap.String("total_revenue", sale.TotalRevenue.StringFixed(2)),
		zap.Int("items", len(sale.Items)),
	)
	return CommitResult{Sale: sale.Clone()}, nil
}

func (l *Ledger) rejected(log *zap.Logger, err error) error {
	l.metrics.ValidationFailed()
	log.Info("sale rejected", zap.Error(err))
	return err
}

// build assigns identity and totals. Items are copied so the caller's
// slice cannot alter the committed record. CreatedAt is stored in UTC
// without a monotonic reading, the form every Store gives back.
func (l *Ledger) build(req CreateSaleRequest) Sale {
	items := append([]SaleItem(nil), req.Items...)
	totals := money.CalcSaleTotals(Lines(items), req.PaymentType, req.PosFeeType, req.PosFeeValue)

	return Sale{
		ID:              l.newID(),
		ClientRequestID: req.ClientRequestID,
		CreatedAt:       l.now().UTC().Round(0),
		CreatedBy:       req.CreatedBy,
		PaymentType:     req.PaymentType,
		PosFeeType:      req.PosFeeType,
		PosFeeValue:     req.PosFeeValue,
		PosFeeAmount:    totals.PosFeeAmount,
		TotalRevenue:    totals.TotalRevenue,
		TotalCost:       totals.TotalCost,
		TotalVat:        totals.TotalVat,
		NetProfit:       totals.NetProfit,
		Items:           items,
	}
}

// apply decrements stock for every line, then appends the sale.
func (l *Ledger) apply(ctx context.Context, sales Store, inventory catalog.Catalog, sale *Sale) error {
	for _, item := range sale.Items {
		applied, err := inventory.DecrementStock(ctx, item.ProductID, item.Qty)
		if err != nil {
			return fmt.Errorf("failed to decrement stock for %s: %w", item.ProductID, err)
		}
		if !applied {
			sale.Warnings = append(sale.Warnings,
				fmt.Sprintf("product %s not found in catalog; stock not decremented", item.ProductID))
			logging.FromContext(ctx, l.logger).Warn("sale line references unknown product",
				zap.String("sale_id", string(sale.ID)),
				zap.String("product_id", string(item.ProductID)),
				zap.Int("qty", item.Qty),
			)
		}
	}
	return sales.Append(ctx, sale.Clone())
}

// =============================================================================
// READS
// =============================================================================

// Get returns a committed sale by id.
func (l *Ledger) Get(ctx context.Context, id SaleID) (Sale, error) {
	return l.store.Get(ctx, id)
}

// Recent returns up to limit sales, most recent first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Sale, error) {
	return l.store.Recent(ctx, limit)
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks a new sale before any state is touched: the key, at
// least one item, positive quantities, known payment and fee types, and
// non-negative money.
func Validate(req CreateSaleRequest) error {
	if err := validateShape(req); err != nil {
		return err
	}
	if !req.PaymentType.Valid() {
		return newValidationError("paymentType", fmt.Sprintf("unknown payment type %q", req.PaymentType))
	}
	if !req.PosFeeType.Valid() {
		return newValidationError("posFeeType", fmt.Sprintf("unknown fee type %q", req.PosFeeType))
	}
	if req.PosFeeValue.IsNegative() {
		return newValidationError("posFeeValue", "must be >= 0")
	}
	for i, item := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case item.Qty <= 0:
			return newValidationError(field+".qty", "must be a positive integer")
		case item.UnitSalePrice.IsNegative():
			return newValidationError(field+".unitSalePrice", "must be >= 0")
		case item.UnitCostPrice.IsNegative():
			return newValidationError(field+".unitCostPrice", "must be >= 0")
		case item.VatRate.IsNegative():
			return newValidationError(field+".vatRate", "must be >= 0")
		}
	}
	return nil
}

// validateShape runs ahead of the idempotency lookup.
func validateShape(req CreateSaleRequest) error {
	if strings.TrimSpace(req.ClientRequestID) == "" {
		return newValidationError("clientRequestId", "is required")
	}
	if len(req.Items) == 0 {
		return newValidationError("items", "at least one item is required")
	}
	return nil
}
