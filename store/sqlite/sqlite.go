/*
Package sqlite provides a SQLite-backed implementation of the sale ledger
store and the inventory catalog.

PURPOSE:
  Implements ledger.TxStore (sales + idempotency index) and catalog.Catalog
  (products + stock) on one database, so a sale's stock decrements and its
  append commit or roll back together.

INTERFACES IMPLEMENTED:
  ledger.Store / ledger.TxStore:  SaleStore
  catalog.Catalog:                Catalog

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on sales / sale_items
  - client_request_id is UNIQUE: the database backs the idempotency index

KEY TABLES:
  sales:       One row per committed sale (money as TEXT decimals)
  sale_items:  Line snapshots, ordered by line_no
  products:    Catalog, CHECK(stock_on_hand >= 0)

STOCK DECREMENT:
  A single statement, so there is no read-modify-write window:
    UPDATE products SET stock_on_hand = MAX(0, stock_on_hand - ?) ...

CONNECTIONS:
  The pool is capped at one connection. SQLite allows a single writer and
  an in-memory database lives per connection, so one connection keeps both
  correct. The default DSN is in-memory; nothing here promises durability.

USAGE:
  db, err := sqlite.Open("file::memory:?cache=shared")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()

  l := ledger.New(db.Sales(), db.Catalog())

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/sale-ledger/catalog"
	"github.com/warp/sale-ledger/ledger"
	"github.com/warp/sale-ledger/money"
)

// DB owns the connection and hands out the sale store and catalog views.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens dsn and migrates the schema.
// Use ":memory:" or "file::memory:?cache=shared" for an in-memory database.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite3", withParams(dsn, "_foreign_keys=on&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	d := &DB{db: db, now: time.Now}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return d, nil
}

// WithClock replaces the clock used for product UpdatedAt. Used by tests.
func (d *DB) WithClock(now func() time.Time) *DB {
	d.now = now
	return d
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Sales returns the ledger store.
func (d *DB) Sales() *SaleStore {
	return &SaleStore{q: d.db, parent: d}
}

// Catalog returns the product catalog.
func (d *DB) Catalog() *Catalog {
	return &Catalog{q: d.db, parent: d}
}

func withParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// migrate creates the database schema.
func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		sale_price TEXT NOT NULL,
		cost_price TEXT NOT NULL,
		vat_rate TEXT NOT NULL,
		stock_on_hand INTEGER NOT NULL CHECK (stock_on_hand >= 0),
		critical_stock INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_active
		ON products(is_active);

	-- Sales (append-only ledger)
	CREATE TABLE IF NOT EXISTS sales (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		client_request_id TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		created_by_id TEXT,
		created_by_name TEXT,
		created_by_role TEXT,
		payment_type TEXT NOT NULL,
		pos_fee_type TEXT,
		pos_fee_value TEXT NOT NULL,
		pos_fee_amount TEXT NOT NULL,
		total_revenue TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		total_vat TEXT NOT NULL,
		net_profit TEXT NOT NULL,
		warnings_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sales_created_at
		ON sales(created_at);

	CREATE TABLE IF NOT EXISTS sale_items (
		sale_id TEXT NOT NULL REFERENCES sales(id),
		line_no INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		qty INTEGER NOT NULL CHECK (qty > 0),
		unit_sale_price TEXT NOT NULL,
		unit_cost_price TEXT NOT NULL,
		vat_rate TEXT NOT NULL,
		PRIMARY KEY (sale_id, line_no)
	);

	CREATE INDEX IF NOT EXISTS idx_sale_items_product
		ON sale_items(product_id);
	`
	_, err := d.db.Exec(schema)
	return err
}

// =============================================================================
// SALE STORE (ledger.Store / ledger.TxStore)
// =============================================================================

type SaleStore struct {
	q      querier
	parent *DB
	inTx   bool
}

// Append inserts the sale and its lines. Outside a transaction it opens one
// so a sale is never stored without its items.
func (s *SaleStore) Append(ctx context.Context, sale ledger.Sale) error {
	if s.inTx {
		return appendSale(ctx, s.q, sale)
	}
	return s.parent.inTx(ctx, func(tx *sql.Tx) error {
		return appendSale(ctx, tx, sale)
	})
}

func appendSale(ctx context.Context, q querier, sale ledger.Sale) error {
	warnings, err := json.Marshal(sale.Warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO sales
		(id, client_request_id, created_at, created_by_id, created_by_name, created_by_role,
		 payment_type, pos_fee_type, pos_fee_value, pos_fee_amount,
		 total_revenue, total_cost, total_vat, net_profit, warnings_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID,
		sale.ClientRequestID,
		formatTime(sale.CreatedAt),
		sale.CreatedBy.ID,
		sale.CreatedBy.Name,
		sale.CreatedBy.Role,
		sale.PaymentType,
		sale.PosFeeType,
		sale.PosFeeValue.String(),
		sale.PosFeeAmount.String(),
		sale.TotalRevenue.String(),
		sale.TotalCost.String(),
		sale.TotalVat.String(),
		sale.NetProfit.String(),
		string(warnings),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "client_request_id") {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append sale: %w", err)
	}

	for i, item := range sale.Items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO sale_items
			(sale_id, line_no, product_id, name, qty, unit_sale_price, unit_cost_price, vat_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sale.ID, i, item.ProductID, item.Name, item.Qty,
			item.UnitSalePrice.String(), item.UnitCostPrice.String(), item.VatRate.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to append sale item %d: %w", i, err)
		}
	}
	return nil
}

const saleColumns = `
	id, client_request_id, created_at, created_by_id, created_by_name, created_by_role,
	payment_type, pos_fee_type, pos_fee_value, pos_fee_amount,
	total_revenue, total_cost, total_vat, net_profit, warnings_json`

func (s *SaleStore) GetByClientRequestID(ctx context.Context, clientRequestID string) (ledger.Sale, bool, error) {
	sales, err := s.querySales(ctx,
		"SELECT "+saleColumns+" FROM sales WHERE client_request_id = ?", clientRequestID)
	if err != nil || len(sales) == 0 {
		return ledger.Sale{}, false, err
	}
	return sales[0], true, nil
}

func (s *SaleStore) Get(ctx context.Context, id ledger.SaleID) (ledger.Sale, error) {
	sales, err := s.querySales(ctx, "SELECT "+saleColumns+" FROM sales WHERE id = ?", id)
	if err != nil {
		return ledger.Sale{}, err
	}
	if len(sales) == 0 {
		return ledger.Sale{}, ledger.ErrSaleNotFound
	}
	return sales[0], nil
}

func (s *SaleStore) Recent(ctx context.Context, limit int) ([]ledger.Sale, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	return s.querySales(ctx, "SELECT "+saleColumns+" FROM sales ORDER BY seq DESC LIMIT ?", limit)
}

// WithTx runs fn with a sale store and catalog bound to one transaction.
func (s *SaleStore) WithTx(ctx context.Context, fn func(ledger.Store, catalog.Catalog) error) error {
	if s.inTx {
		return fn(s, &Catalog{q: s.q, parent: s.parent})
	}
	return s.parent.inTx(ctx, func(tx *sql.Tx) error {
		return fn(
			&SaleStore{q: tx, parent: s.parent, inTx: true},
			&Catalog{q: tx, parent: s.parent},
		)
	})
}

// querySales reads sale rows, closes the cursor, then loads items. The
// single pooled connection cannot serve two open cursors.
func (s *SaleStore) querySales(ctx context.Context, query string, args ...any) ([]ledger.Sale, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}

	var sales []ledger.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range sales {
		items, err := s.loadItems(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}
	return sales, nil
}

func (s *SaleStore) loadItems(ctx context.Context, id ledger.SaleID) ([]ledger.SaleItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT product_id, name, qty, unit_sale_price, unit_cost_price, vat_rate
		FROM sale_items WHERE sale_id = ? ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	var items []ledger.SaleItem
	for rows.Next() {
		var (
			item             ledger.SaleItem
			sale, cost, rate string
		)
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Qty, &sale, &cost, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		item.UnitSalePrice = parseDecimal(sale)
		item.UnitCostPrice = parseDecimal(cost)
		item.VatRate = parseDecimal(rate)
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanSale(rows *sql.Rows) (ledger.Sale, error) {
	var (
		sale                          ledger.Sale
		createdAt                     string
		byID, byName, byRole, feeType sql.NullString
		feeValue, feeAmount           string
		revenue, cost, vat, net       string
		warnings                      sql.NullString
	)

	err := rows.Scan(
		&sale.ID, &sale.ClientRequestID, &createdAt, &byID, &byName, &byRole,
		&sale.PaymentType, &feeType, &feeValue, &feeAmount,
		&revenue, &cost, &vat, &net, &warnings,
	)
	if err != nil {
		return sale, fmt.Errorf("failed to scan sale: %w", err)
	}

	sale.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sale.CreatedBy = ledger.Creator{ID: byID.String, Name: byName.String, Role: byRole.String}
	sale.PosFeeType = money.FeeType(feeType.String)
	sale.PosFeeValue = parseDecimal(feeValue)
	sale.PosFeeAmount = parseDecimal(feeAmount)
	sale.TotalRevenue = parseDecimal(revenue)
	sale.TotalCost = parseDecimal(cost)
	sale.TotalVat = parseDecimal(vat)
	sale.NetProfit = parseDecimal(net)

	if warnings.Valid && warnings.String != "" && warnings.String != "null" {
		if err := json.Unmarshal([]byte(warnings.String), &sale.Warnings); err != nil {
			return sale, fmt.Errorf("failed to decode warnings: %w", err)
		}
	}
	return sale, nil
}

// =============================================================================
// CATALOG (catalog.Catalog)
// =============================================================================

type Catalog struct {
	q      querier
	parent *DB
}

const productColumns = `
	id, name, category, sale_price, cost_price, vat_rate,
	stock_on_hand, critical_stock, is_active, updated_at`

func (c *Catalog) Get(ctx context.Context, id catalog.ProductID) (catalog.Product, error) {
	products, err := c.queryProducts(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	if err != nil {
		return catalog.Product{}, err
	}
	if len(products) == 0 {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return products[0], nil
}

func (c *Catalog) DecrementStock(ctx context.Context, id catalog.ProductID, qty int) (bool, error) {
	res, err := c.q.ExecContext(ctx, `
		UPDATE products
		SET stock_on_hand = MAX(0, stock_on_hand - ?), updated_at = ?
		WHERE id = ?`,
		qty, formatTime(c.parent.now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Catalog) ListActive(ctx context.Context) ([]catalog.Product, error) {
	return c.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_active = 1 ORDER BY rowid")
}

func (c *Catalog) ListLowStock(ctx context.Context) ([]catalog.Product, error) {
	return c.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_active = 1 AND stock_on_hand <= critical_stock ORDER BY rowid")
}

// Upsert keeps the original rowid on conflict, so insertion order holds.
func (c *Catalog) Upsert(ctx context.Context, p catalog.Product) error {
	if err := catalog.Validate(p); err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = c.parent.now()
	}

	_, err := c.q.ExecContext(ctx, `
		INSERT INTO products
		(id, name, category, sale_price, cost_price, vat_rate, stock_on_hand, critical_stock, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			sale_price = excluded.sale_price,
			cost_price = excluded.cost_price,
			vat_rate = excluded.vat_rate,
			stock_on_hand = excluded.stock_on_hand,
			critical_stock = excluded.critical_stock,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, nullString(p.Category),
		p.SalePrice.String(), p.CostPrice.String(), p.VatRate.String(),
		p.StockOnHand, p.CriticalStock, p.IsActive, formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

// UpdateMetadata edits every column except stock_on_hand.
func (c *Catalog) UpdateMetadata(ctx context.Context, id catalog.ProductID, u catalog.MetadataUpdate) (catalog.Product, error) {
	var updated catalog.Product
	err := c.withinTx(ctx, func(tc *Catalog) error {
		current, err := tc.Get(ctx, id)
		if err != nil {
			return err
		}
		updated = u.Apply(current)
		updated.StockOnHand = current.StockOnHand
		if err := catalog.Validate(updated); err != nil {
			return err
		}
		updated.UpdatedAt = c.parent.now()

		_, err = tc.q.ExecContext(ctx, `
			UPDATE products
			SET name = ?, category = ?, sale_price = ?, cost_price = ?, vat_rate = ?,
			    critical_stock = ?, is_active = ?, updated_at = ?
			WHERE id = ?`,
			updated.Name, nullString(updated.Category),
			updated.SalePrice.String(), updated.CostPrice.String(), updated.VatRate.String(),
			updated.CriticalStock, updated.IsActive, formatTime(updated.UpdatedAt), id,
		)
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return catalog.Product{}, err
	}
	return updated, nil
}

func (c *Catalog) withinTx(ctx context.Context, fn func(*Catalog) error) error {
	if _, ok := c.q.(*sql.Tx); ok {
		return fn(c)
	}
	return c.parent.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&Catalog{q: tx, parent: c.parent})
	})
}

func (c *Catalog) queryProducts(ctx context.Context, query string, args ...any) ([]catalog.Product, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var (
			p                     catalog.Product
			category              sql.NullString
			sale, cost, rate, upd string
		)
		err := rows.Scan(&p.ID, &p.Name, &category, &sale, &cost, &rate,
			&p.StockOnHand, &p.CriticalStock, &p.IsActive, &upd)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Category = category.String
		p.SalePrice = parseDecimal(sale)
		p.CostPrice = parseDecimal(cost)
		p.VatRate = parseDecimal(rate)
		p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, upd)
		products = append(products, p)
	}
	return products, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func (d *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
