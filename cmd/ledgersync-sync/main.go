// ledgersync-sync runs one forced sync and exits. It is the ops tool for
// backfills and for verifying provider credentials.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ledgersync/internal/config"
	"ledgersync/internal/log"
	"ledgersync/internal/provider"
	"ledgersync/internal/provider/fixture"
	"ledgersync/internal/provider/sheets"
	"ledgersync/internal/repository"
	"ledgersync/internal/services"
	"ledgersync/internal/store"
	"ledgersync/internal/store/memory"
	"ledgersync/internal/store/sqlite"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var st store.Store
	switch cfg.StoreBackend {
	case "sqlite":
		sqliteStore, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer sqliteStore.Close()
		st = sqliteStore
	default:
		st = memory.New()
	}

	var prov provider.Provider
	switch cfg.Provider {
	case "sheets":
		sheetsClient, err := sheets.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets provider", "error", err)
			os.Exit(1)
		}
		prov = sheetsClient
	default:
		prov = fixture.New(nil, nil)
	}

	repo := repository.New(st)
	writer := services.NewBatchWriter(st)
	mapper := services.NewCategoryMapper(repo, cfg.UserID)
	if err := mapper.LoadOverrides(ctx); err != nil {
		logger.Warn("Failed to load category mapping overrides", "error", err)
	}
	aggregator := services.NewAggregationEngine(repo, mapper, services.DefaultTipConfig())
	allocator := services.NewAutoBudgetAllocator(repo, writer, services.DefaultAllocatorConfig())
	orch := services.NewSyncOrchestrator(repo, prov, writer, mapper, aggregator, allocator, cfg.UserID,
		services.WithMinSyncInterval(cfg.SyncInterval))

	logger.Info("Running forced sync", "user", cfg.UserID, "provider", cfg.Provider)
	started := time.Now()

	if err := orch.PerformFullSync(ctx, true); err != nil {
		logger.Error("Sync failed", "error", err)
		os.Exit(1)
	}

	status := orch.Status()
	fmt.Printf("sync completed in %s (last sync %s)\n",
		time.Since(started).Round(time.Millisecond),
		status.LastSyncTime.Format(time.RFC3339))
}
