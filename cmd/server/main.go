/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the sale ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env + environment), apply flag overrides
  2. Build logger and metrics registry
  3. Open the store backend (memory or sqlite)
  4. Seed the catalog from YAML if configured
  5. Build ledger, reporting views, router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (SERVER_PORT)
  -store   memory | sqlite (STORE_DRIVER)
  -db      SQLite DSN (SQLITE_DSN)
  -seed    Catalog seed YAML (CATALOG_SEED_FILE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -store=sqlite -db="./data/ledger.db" -seed=./catalog.yaml
  ./server -port=3000

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/sale-ledger/api"
	"github.com/warp/sale-ledger/catalog"
	"github.com/warp/sale-ledger/config"
	"github.com/warp/sale-ledger/ledger"
	ledgerstore "github.com/warp/sale-ledger/ledger/store"
	"github.com/warp/sale-ledger/logging"
	"github.com/warp/sale-ledger/metrics"
	"github.com/warp/sale-ledger/reports"
	"github.com/warp/sale-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	flag.IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP server port")
	flag.StringVar(&cfg.Store.Driver, "store", cfg.Store.Driver, "store backend: memory | sqlite")
	flag.StringVar(&cfg.Store.SQLiteDSN, "db", cfg.Store.SQLiteDSN, "SQLite DSN")
	flag.StringVar(&cfg.Store.SeedFile, "seed", cfg.Store.SeedFile, "catalog seed YAML file")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// backend is the pair of stores the ledger runs on.
type backend struct {
	sales     ledger.Store
	inventory catalog.Catalog
	ping      func(context.Context) error
	close     func() error
}

func openBackend(cfg *config.Config) (*backend, error) {
	switch cfg.Store.Driver {
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.Store.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return &backend{sales: db.Sales(), inventory: db.Catalog(), ping: db.Ping, close: db.Close}, nil
	default:
		return &backend{
			sales:     ledgerstore.NewMemory(),
			inventory: catalog.NewMemory(),
			close:     func() error { return nil },
		}, nil
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting sale ledger", cfg.LogFields()...)

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	if cfg.Store.SeedFile != "" {
		n, err := catalog.SeedFromFile(context.Background(), b.inventory, cfg.Store.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		logger.Info("catalog seeded", zap.Int("products", n), zap.String("file", cfg.Store.SeedFile))
	}

	rec := metrics.NewDefault()
	l := ledger.New(b.sales, b.inventory,
		ledger.WithLogger(logger),
		ledger.WithMetrics(rec),
	)

	handler := api.NewHandler(l, b.inventory, reports.NewViews(l, nil))
	handler.Logger = logger
	handler.DefaultLimit = cfg.SalesListDefault
	handler.Ping = b.ping

	if cfg.StockCheckInterval > 0 {
		monitor := api.NewStockMonitor(b.inventory, logger, rec)
		monitor.CheckInterval = cfg.StockCheckInterval
		monitor.Start()
		defer monitor.Stop()
	}

	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         logger,
		Metrics:        rec,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
