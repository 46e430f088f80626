// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/sale-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation
// =============================================================================

// Memory keeps sales in commit order and indexes them by clientRequestId.
type Memory struct {
	mu          sync.RWMutex
	sales       []ledger.Sale // oldest first; Recent reverses
	byID        map[ledger.SaleID]int
	idempotency map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		byID:        make(map[ledger.SaleID]int),
		idempotency: make(map[string]int),
	}
}

// Append adds a sale. Append-only.
func (m *Memory) Append(_ context.Context, sale ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.idempotency[sale.ClientRequestID]; exists {
		return ledger.ErrDuplicateIdempotencyKey
	}

	m.sales = append(m.sales, sale.Clone())
	i := len(m.sales) - 1
	m.byID[sale.ID] = i
	m.idempotency[sale.ClientRequestID] = i
	return nil
}

func (m *Memory) GetByClientRequestID(_ context.Context, clientRequestID string) (ledger.Sale, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.idempotency[clientRequestID]
	if !ok {
		return ledger.Sale{}, false, nil
	}
	return m.sales[i].Clone(), true, nil
}

func (m *Memory) Get(_ context.Context, id ledger.SaleID) (ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return ledger.Sale{}, ledger.ErrSaleNotFound
	}
	return m.sales[i].Clone(), nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.sales)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]ledger.Sale, 0, n)
	for i := len(m.sales) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, m.sales[i].Clone())
	}
	return result, nil
}

// Len returns the number of committed sales.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sales)
}
