// Package config loads service configuration from the environment, with an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int
	Env             string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// StoreConfig selects the ledger/catalog backend.
type StoreConfig struct {
	Driver    string // memory | sqlite
	SQLiteDSN string
	SeedFile  string // optional YAML catalog seed
}

// Config holds all configuration.
type Config struct {
	ServiceName      string
	LogLevel         string
	Server           ServerConfig
	Store            StoreConfig
	SalesListDefault int

	// StockCheckInterval paces the low-stock monitor. Zero disables it.
	StockCheckInterval time.Duration
}

// Load reads .env (if present) and the environment. Missing keys fall back
// to defaults suitable for local development.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "sale-ledger"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Env:             getEnv("APP_ENV", "development"),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver:    getEnv("STORE_DRIVER", StoreMemory),
			SQLiteDSN: getEnv("SQLITE_DSN", "file::memory:?cache=shared"),
			SeedFile:  getEnv("CATALOG_SEED_FILE", ""),
		},
		SalesListDefault:   getEnvAsInt("SALES_LIST_DEFAULT_LIMIT", 50),
		StockCheckInterval: getEnvAsDuration("STOCK_CHECK_INTERVAL", 5*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %q or %q)", c.Store.Driver, StoreMemory, StoreSQLite)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.StockCheckInterval < 0 {
		return fmt.Errorf("STOCK_CHECK_INTERVAL must not be negative (got %s)", c.StockCheckInterval)
	}
	if c.SalesListDefault <= 0 {
		return fmt.Errorf("SALES_LIST_DEFAULT_LIMIT must be positive (got %d)", c.SalesListDefault)
	}
	return nil
}

// LogFields returns the configuration as zap fields.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.Int("port", c.Server.Port),
		zap.String("store_driver", c.Store.Driver),
		zap.String("seed_file", c.Store.SeedFile),
		zap.String("log_level", c.LogLevel),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
