/*
scheduler.go - Periodic low-stock monitor

PURPOSE:
  Periodically lists active products at or below their critical stock
  level, logs each one at WARN, and publishes the count as the
  products_low_stock gauge. Sales never block on stock, so this is how
  shortfalls surface outside the low-stock endpoint.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on Start
  - Stop waits for the goroutine to exit

USAGE:
  monitor := NewStockMonitor(inventory, logger, rec)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - handlers.go: ListLowStock endpoint (on-demand view)
  - catalog/catalog.go: ListLowStock
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/sale-ledger/catalog"
	"github.com/warp/sale-ledger/metrics"
)

// StockMonitor reports low-stock products on a ticker.
type StockMonitor struct {
	Catalog       catalog.Catalog
	Logger        *zap.Logger
	Metrics       *metrics.Recorder
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewStockMonitor creates a monitor checking every five minutes.
func NewStockMonitor(inventory catalog.Catalog, logger *zap.Logger, rec *metrics.Recorder) *StockMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockMonitor{
		Catalog:       inventory,
		Logger:        logger,
		Metrics:       rec,
		CheckInterval: 5 * time.Minute,
	}
}

// Start begins the monitor. Calling Start twice is a no-op.
func (m *StockMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		return
	}
	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run(m.ticker, m.stop)

	m.Logger.Info("stock monitor started", zap.Duration("interval", m.CheckInterval))
}

// Stop stops the monitor and waits for the running check to finish.
func (m *StockMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.wg.Wait()
	m.ticker = nil
	m.Logger.Info("stock monitor stopped")
}

func (m *StockMonitor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()

	// Run immediately on start
	m.Check(context.Background())

	for {
		select {
		case <-ticker.C:
			m.Check(context.Background())
		case <-stop:
			return
		}
	}
}

// Check runs one pass and returns the low-stock products found.
func (m *StockMonitor) Check(ctx context.Context) []catalog.Product {
	low, err := m.Catalog.ListLowStock(ctx)
	if err != nil {
		m.Logger.Error("failed to list low-stock products", zap.Error(err))
		return nil
	}

	for _, p := range low {
		m.Logger.Warn("product at or below critical stock",
			zap.String("product_id", string(p.ID)),
			zap.String("name", p.Name),
			zap.Int("stock_on_hand", p.StockOnHand),
			zap.Int("critical_stock", p.CriticalStock),
		)
	}
	m.Metrics.LowStock(len(low))
	return low
}
