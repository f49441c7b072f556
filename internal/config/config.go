// Package config loads Vega's environment configuration: data
// directory, analysis defaults, cron schedules, the market data feed
// and backup storage.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/vega/internal/utils"
)

// Config holds application configuration.
//
// Analysis defaults (risk-free rate, tax rates, tolerance, market proxy) are
// service-level defaults only: every engine call accepts these parameters
// explicitly, and request payloads may override them per call.
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Analysis defaults
	RiskFreeRate      float64 // Annualized risk-free rate
	MarketProxySymbol string  // Symbol used as the market proxy for beta
	LookbackDays      int     // Default history window for return series

	// Rebalancing defaults
	RebalanceTolerance float64 // Allowed |target - current| weight drift
	TaxSensitivity     float64 // 0 = ignore taxes, 1 = fully tax-driven lot ordering
	LongTermTaxRate    float64
	ShortTermTaxRate   float64

	// Market data feed (optional; sync job is skipped without an API key)
	MarketFeedBaseURL string
	MarketFeedAPIKey  string
	MarketFeedSymbols []string // Symbols to sync daily

	// Cron schedules
	PriceSyncSchedule   string
	CachePruneSchedule  string
	SnapshotSchedule    string
	MaintenanceSchedule string

	// Backup storage (optional; S3-compatible, e.g. R2)
	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup storage configuration.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // Custom endpoint for R2-style providers; empty for AWS
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Retention       int    // Number of backups to keep
	Schedule        string // Cron schedule for automatic backups
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory, always resolved to an absolute path that exists
	dataDir := getEnv("VEGA_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8010),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RiskFreeRate:      getEnvAsFloat("RISK_FREE_RATE", 0.03),
		MarketProxySymbol: getEnv("MARKET_PROXY_SYMBOL", "SPY"),
		LookbackDays:      getEnvAsInt("LOOKBACK_DAYS", 252),

		RebalanceTolerance: getEnvAsFloat("REBALANCE_TOLERANCE", 0.05),
		TaxSensitivity:     getEnvAsFloat("TAX_SENSITIVITY", 0.5),
		LongTermTaxRate:    getEnvAsFloat("LONG_TERM_TAX_RATE", 0.20),
		ShortTermTaxRate:   getEnvAsFloat("SHORT_TERM_TAX_RATE", 0.37),

		MarketFeedBaseURL: getEnv("MARKET_FEED_BASE_URL", "https://www.alphavantage.co"),
		MarketFeedAPIKey:  getEnv("MARKET_FEED_API_KEY", ""),
		MarketFeedSymbols: utils.ParseCSV(getEnv("MARKET_FEED_SYMBOLS", "")),

		PriceSyncSchedule:   getEnv("PRICE_SYNC_SCHEDULE", "0 30 22 * * MON-FRI"),
		CachePruneSchedule:  getEnv("CACHE_PRUNE_SCHEDULE", "@hourly"),
		SnapshotSchedule:    getEnv("SNAPSHOT_SCHEDULE", "0 0 23 * * *"),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 5 * * SUN"),

		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RebalanceTolerance < 0 {
		return fmt.Errorf("rebalance tolerance must be non-negative, got %v", c.RebalanceTolerance)
	}
	if c.TaxSensitivity < 0 || c.TaxSensitivity > 1 {
		return fmt.Errorf("tax sensitivity must be in [0, 1], got %v", c.TaxSensitivity)
	}
	if c.LongTermTaxRate < 0 || c.ShortTermTaxRate < 0 {
		return fmt.Errorf("tax rates must be non-negative")
	}
	if c.LookbackDays < 2 {
		return fmt.Errorf("lookback days must be at least 2, got %d", c.LookbackDays)
	}
	if c.Backup != nil && c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backup enabled but BACKUP_BUCKET not set")
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// loadBackupConfig loads backup storage configuration from the environment
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		Retention:       getEnvAsInt("BACKUP_RETENTION", 7),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 4 * * *"),
	}
}
