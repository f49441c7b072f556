// Package main is the entry point for the Vega portfolio analysis server.
// The application prices options contracts, analyzes portfolio risk,
// optimizes allocations, and plans tax-aware rebalancing trades, backed
// by a local price history synced from a market data feed.
//
// Startup sequence:
// 1. Loads configuration from environment variables
// 2. Initializes structured logging
// 3. Opens and migrates the three databases (market, portfolio, cache)
// 4. Wires module services onto the shared event bus
// 5. Configures backup storage and the cron scheduler
// 6. Starts the HTTP server and waits for a shutdown signal
//
// The application uses a 3-database architecture:
// - market.db: Daily price history and latest quotes
// - portfolio.db: Positions and tax lots (the ledger of record)
// - cache.db: Ephemeral analysis results, snapshots and job history
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/cache"
	"github.com/aristath/vega/internal/clients/marketfeed"
	"github.com/aristath/vega/internal/config"
	"github.com/aristath/vega/internal/database"
	"github.com/aristath/vega/internal/events"
	"github.com/aristath/vega/internal/modules/marketdata"
	marketdatahandlers "github.com/aristath/vega/internal/modules/marketdata/handlers"
	"github.com/aristath/vega/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/vega/internal/modules/optimization/handlers"
	"github.com/aristath/vega/internal/modules/options"
	optionshandlers "github.com/aristath/vega/internal/modules/options/handlers"
	"github.com/aristath/vega/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/vega/internal/modules/portfolio/handlers"
	"github.com/aristath/vega/internal/modules/rebalancing"
	rebalancinghandlers "github.com/aristath/vega/internal/modules/rebalancing/handlers"
	"github.com/aristath/vega/internal/modules/risk"
	riskhandlers "github.com/aristath/vega/internal/modules/risk/handlers"
	"github.com/aristath/vega/internal/reliability"
	"github.com/aristath/vega/internal/scheduler"
	"github.com/aristath/vega/internal/server"
	"github.com/aristath/vega/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger so the configuration error itself gets logged
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting Vega")

	// Open and migrate the databases. Each gets a PRAGMA profile suited
	// to its write pattern: the portfolio ledger favors durability, the
	// cache favors speed, market history sits in between.
	marketDB := openDatabase(cfg, "market", database.ProfileStandard, log)
	defer marketDB.Close()

	portfolioDB := openDatabase(cfg, "portfolio", database.ProfileLedger, log)
	defer portfolioDB.Close()

	cacheDB := openDatabase(cfg, "cache", database.ProfileCache, log)
	defer cacheDB.Close()

	databases := map[string]*database.DB{
		"market":    marketDB,
		"portfolio": portfolioDB,
		"cache":     cacheDB,
	}

	// Event bus connects module services to the SSE and WebSocket
	// streams and to the job history recorder
	bus := events.NewBus(log)

	// Shared store for cached analysis results
	store := cache.NewStore(cacheDB.Conn(), log)

	// Market data: price repository plus the external feed client.
	// Without an API key the service still serves stored history, it
	// just cannot sync new bars.
	var feed marketfeed.ClientInterface
	if cfg.MarketFeedAPIKey != "" {
		feed = marketfeed.NewClient(cfg.MarketFeedBaseURL, cfg.MarketFeedAPIKey, log)
	} else {
		log.Warn().Msg("No market feed API key configured, price sync disabled")
	}

	marketDataService := marketdata.NewService(
		marketdata.NewPriceRepository(marketDB.Conn(), log),
		feed,
		bus,
		cfg.MarketFeedSymbols,
		log,
	)

	// Analysis modules share the risk-free rate and the cache store
	optionsService := options.NewService(
		options.NewAnalyzer(cfg.RiskFreeRate, log),
		store, bus, cfg.RiskFreeRate, log,
	)

	riskService := risk.NewService(marketDataService, store, bus, cfg.RiskFreeRate, log)

	optimizationService := optimization.NewService(
		optimization.NewOptimizer(log),
		marketDataService, store, bus, cfg.RiskFreeRate, log,
	)

	portfolioService := portfolio.NewService(
		portfolio.NewPositionRepository(portfolioDB.Conn(), log),
		portfolio.NewSnapshotRepository(cacheDB.Conn(), log),
		marketDataService,
		bus,
		log,
	)

	rebalancingService := rebalancing.NewService(
		rebalancing.NewRebalancer(log),
		portfolioService,
		bus,
		rebalancing.Options{
			Tolerance:      cfg.RebalanceTolerance,
			TaxSensitivity: cfg.TaxSensitivity,
			LongTermRate:   cfg.LongTermTaxRate,
			ShortTermRate:  cfg.ShortTermTaxRate,
		},
		log,
	)

	// Backup storage is optional. When enabled, archives of all three
	// databases are uploaded to an S3-compatible bucket.
	var backupService *reliability.BackupService
	if cfg.Backup != nil && cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage")
		}

		backupService = reliability.NewBackupService(s3Client, databases, cfg.DataDir, bus, log)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backup storage configured")
	}

	// Cron scheduler records every run in cache.db job_history
	sched := scheduler.New(cacheDB.Conn(), bus, log)

	if feed != nil && len(cfg.MarketFeedSymbols) > 0 {
		addJob(sched, cfg.PriceSyncSchedule, scheduler.NewPriceSyncJob(marketDataService, log), log)
	}
	addJob(sched, cfg.CachePruneSchedule, scheduler.NewCachePruneJob(store, log), log)
	addJob(sched, cfg.SnapshotSchedule, scheduler.NewSnapshotJob(portfolioService, log), log)
	addJob(sched, cfg.MaintenanceSchedule, scheduler.NewMaintenanceJob(databases, log), log)

	if backupService != nil {
		backupJob := scheduler.NewBackupJob(backupService, cfg.Backup.Retention, log)
		addJob(sched, cfg.Backup.Schedule, backupJob, log)
	}

	sched.Start()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		Bus:          bus,
		Options:      optionshandlers.NewHandler(optionsService, log),
		MarketData:   marketdatahandlers.NewHandler(marketDataService, cfg.LookbackDays, log),
		Risk:         riskhandlers.NewHandler(riskService, log),
		Optimization: optimizationhandlers.NewHandler(optimizationService, log),
		Portfolio:    portfoliohandlers.NewHandler(portfolioService, log),
		Rebalancing:  rebalancinghandlers.NewHandler(rebalancingService, log),
		System:       server.NewSystemHandlers(log, cfg.DataDir, databases, backupService, marketDataService),
	})

	// Start server in goroutine so the main thread can wait on signals
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no new job starts mid-shutdown.
	// In-progress jobs run to completion.
	sched.Stop()
	log.Info().Msg("Scheduler stopped")

	// The HTTP server gets up to 10 seconds to finish in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// openDatabase opens one of the service databases and applies its schema
// migrations. Any failure here is fatal: the application cannot run with
// a missing or corrupt database.
func openDatabase(cfg *config.Config, name string, profile database.DatabaseProfile, log zerolog.Logger) *database.DB {
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to open database")
	}

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
	}

	log.Info().Str("database", name).Str("profile", string(profile)).Msg("Database ready")
	return db
}

// addJob registers a cron job, logging instead of aborting when the
// schedule expression is invalid so one bad entry cannot keep the
// service from starting.
func addJob(sched *scheduler.Scheduler, schedule string, job scheduler.Job, log zerolog.Logger) {
	if err := sched.AddJob(schedule, job); err != nil {
		log.Error().Err(err).Str("job", job.Name()).Str("schedule", schedule).Msg("Failed to schedule job")
	}
}
