package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sale-ledger/catalog"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestCatalog(t *testing.T, products ...catalog.Product) *catalog.Memory {
	t.Helper()
	c := catalog.NewMemory().WithClock(func() time.Time { return fixedNow })
	for _, p := range products {
		require.NoError(t, c.Upsert(context.Background(), p))
	}
	return c
}

func product(id string, stock int) catalog.Product {
	return catalog.Product{
		ID:            catalog.ProductID(id),
		Name:          "Product " + id,
		SalePrice:     decimal.NewFromInt(25),
		CostPrice:     decimal.NewFromInt(17),
		VatRate:       decimal.RequireFromString("0.10"),
		StockOnHand:   stock,
		CriticalStock: 2,
		IsActive:      true,
	}
}

// =============================================================================
// DECREMENT
// =============================================================================

func TestDecrementStock_ReducesStock(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, product("p1", 10))

	applied, err := c.DecrementStock(ctx, "p1", 3)
	require.NoError(t, err)
	assert.True(t, applied)

	p, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.StockOnHand)
	assert.Equal(t, fixedNow, p.UpdatedAt)
}

func TestDecrementStock_ClampsAtZero(t *testing.T) {
	// GIVEN: 2 units on hand
	ctx := context.Background()
	c := newTestCatalog(t, product("p1", 2))

	// WHEN: selling 5
	_, err := c.DecrementStock(ctx, "p1", 5)
	require.NoError(t, err)

	// THEN: stock floors at zero, never negative
	p, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.StockOnHand)
}

func TestDecrementStock_MissingProductIsNoop(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, product("p1", 4))

	applied, err := c.DecrementStock(ctx, "ghost", 1)
	require.NoError(t, err)
	assert.False(t, applied)

	p, _ := c.Get(ctx, "p1")
	assert.Equal(t, 4, p.StockOnHand)
}

func TestDecrementStock_ConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, product("p1", 1000))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.DecrementStock(ctx, "p1", 3)
		}()
	}
	wg.Wait()

	p, _ := c.Get(ctx, "p1")
	assert.Equal(t, 700, p.StockOnHand)
}

// =============================================================================
// READS
// =============================================================================

func TestGet_NotFound(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestListActive_InsertionOrderAndActiveOnly(t *testing.T) {
	inactive := product("b", 5)
	inactive.IsActive = false
	c := newTestCatalog(t, product("c", 1), inactive, product("a", 1))

	// Re-upserting keeps the original position.
	require.NoError(t, c.Upsert(context.Background(), product("c", 9)))

	active, err := c.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, catalog.ProductID("c"), active[0].ID)
	assert.Equal(t, 9, active[0].StockOnHand)
	assert.Equal(t, catalog.ProductID("a"), active[1].ID)
}

func TestListLowStock(t *testing.T) {
	c := newTestCatalog(t, product("plenty", 50), product("low", 2), product("empty", 0))

	low, err := c.ListLowStock(context.Background())
	require.NoError(t, err)

	var ids []catalog.ProductID
	for _, p := range low {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []catalog.ProductID{"low", "empty"}, ids)
}

// =============================================================================
// WRITES
// =============================================================================

func TestUpsert_RejectsNegativeStock(t *testing.T) {
	c := newTestCatalog(t)

	err := c.Upsert(context.Background(), product("p1", -1))
	assert.ErrorIs(t, err, catalog.ErrInvalidProduct)
}

func TestUpdateMetadata_LeavesStockAlone(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, product("p1", 8))

	name := "Renamed"
	price := decimal.NewFromInt(30)
	updated, err := c.UpdateMetadata(ctx, "p1", catalog.MetadataUpdate{Name: &name, SalePrice: &price})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, price.Equal(updated.SalePrice))
	assert.Equal(t, 8, updated.StockOnHand)
}

func TestUpdateMetadata_NotFound(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.UpdateMetadata(context.Background(), "nope", catalog.MetadataUpdate{})
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

// =============================================================================
// SEED
// =============================================================================

const seedYAML = `
products:
  - id: p-espresso
    name: Espresso
    category: coffee
    sale_price: 2.50
    cost_price: 0.80
    vat_rate: 0.10
    stock: 120
    critical_stock: 10
  - id: p-mug
    name: Mug
    sale_price: 9
    cost_price: 4
    vat_rate: 0.20
    stock: 3
    inactive: true
`

func TestLoadSeed(t *testing.T) {
	products, err := catalog.LoadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, catalog.ProductID("p-espresso"), products[0].ID)
	assert.Equal(t, "2.5", products[0].SalePrice.String())
	assert.Equal(t, 120, products[0].StockOnHand)
	assert.True(t, products[0].IsActive)
	assert.False(t, products[1].IsActive)
}

func TestLoadSeed_RejectsInvalidProduct(t *testing.T) {
	_, err := catalog.LoadSeed(strings.NewReader("products:\n  - name: no id\n"))
	assert.ErrorIs(t, err, catalog.ErrInvalidProduct)
}

func TestSeedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	c := newTestCatalog(t)
	n, err := catalog.SeedFromFile(context.Background(), c, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	active, _ := c.ListActive(context.Background())
	assert.Len(t, active, 1)
}
