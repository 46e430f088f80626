package catalog

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// MEMORY CATALOG - In-process implementation
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	products map[ProductID]*Product
	order    []ProductID // insertion order
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[ProductID]*Product),
		now:      time.Now,
	}
}

// WithClock replaces the UpdatedAt clock. Used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, id ProductID) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return *p, nil
}

// DecrementStock clamps at zero. Read and write happen under one lock.
func (m *Memory) DecrementStock(_ context.Context, id ProductID, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return false, nil
	}
	p.StockOnHand = max(0, p.StockOnHand-qty)
	p.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) ListActive(_ context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Product
	for _, id := range m.order {
		if p := m.products[id]; p.IsActive {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *Memory) ListLowStock(ctx context.Context) ([]Product, error) {
	active, err := m.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return FilterLowStock(active), nil
}

func (m *Memory) Upsert(_ context.Context, p Product) error {
	if err := Validate(p); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = m.now()
	}
	if _, exists := m.products[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	m.products[p.ID] = &p
	return nil
}

func (m *Memory) UpdateMetadata(_ context.Context, id ProductID, u MetadataUpdate) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	updated := u.Apply(*p)
	updated.StockOnHand = p.StockOnHand
	if err := Validate(updated); err != nil {
		return Product{}, err
	}
	updated.UpdatedAt = m.now()
	*p = updated
	return updated, nil
}
