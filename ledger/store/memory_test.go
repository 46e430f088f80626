package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sale-ledger/ledger"
	"github.com/warp/sale-ledger/ledger/store"
)

func sale(n int) ledger.Sale {
	return ledger.Sale{
		ID:              ledger.SaleID(fmt.Sprintf("sale-%d", n)),
		ClientRequestID: fmt.Sprintf("req-%d", n),
		Items:           []ledger.SaleItem{{ProductID: "p1", Qty: n}},
	}
}

func TestMemory_AppendRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.Append(ctx, sale(1)))

	dup := sale(2)
	dup.ClientRequestID = "req-1"
	assert.ErrorIs(t, m.Append(ctx, dup), ledger.ErrDuplicateIdempotencyKey)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_RecentIsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for i := 1; i <= 5; i++ {
		require.NoError(t, m.Append(ctx, sale(i)))
	}

	got, err := m.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ledger.SaleID("sale-5"), got[0].ID)
	assert.Equal(t, ledger.SaleID("sale-3"), got[2].ID)

	all, err := m.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemory_Lookups(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Append(ctx, sale(1)))

	got, found, err := m.GetByClientRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ledger.SaleID("sale-1"), got.ID)

	_, found, err = m.GetByClientRequestID(ctx, "req-9")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = m.Get(ctx, "sale-9")
	assert.ErrorIs(t, err, ledger.ErrSaleNotFound)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Append(ctx, sale(1)))

	got, _ := m.Get(ctx, "sale-1")
	got.Items[0].Qty = 99

	again, _ := m.Get(ctx, "sale-1")
	assert.Equal(t, 1, again.Items[0].Qty)
}
