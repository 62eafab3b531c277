package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ledgersync/internal/config"
	"ledgersync/internal/events"
	"ledgersync/internal/log"
	"ledgersync/internal/provider"
	"ledgersync/internal/provider/fixture"
	"ledgersync/internal/provider/sheets"
	"ledgersync/internal/repository"
	"ledgersync/internal/services"
	"ledgersync/internal/store"
	"ledgersync/internal/store/memory"
	"ledgersync/internal/store/sqlite"
	"ledgersync/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting ledgersync-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger = logger.WithUser(cfg.UserID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		logger.Info("SQLite store ready", "path", cfg.SQLiteDBPath)
	default:
		st = memory.New()
		logger.Info("In-memory store ready")
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
		logger.Info("Google Sheets provider initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		prov = fixture.New(nil, nil)
		logger.Info("Fixture provider initialized - serving empty snapshots")
	}

	repo := repository.New(st)
	writer := services.NewBatchWriter(st)
	mapper := services.NewCategoryMapper(repo, cfg.UserID)
	if err := mapper.LoadOverrides(ctx); err != nil {
		logger.Warn("Failed to load category mapping overrides", "error", err)
	}
	aggregator := services.NewAggregationEngine(repo, mapper, services.DefaultTipConfig())
	allocator := services.NewAutoBudgetAllocator(repo, writer, services.DefaultAllocatorConfig())

	orchOpts := []services.OrchestratorOption{
		services.WithMinSyncInterval(cfg.SyncInterval),
	}

	// AMQP is optional: without it the worker runs timer-only
	var eventsClient *events.Client
	if cfg.AMQPURL != "" {
		eventsClient, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEventsQueue, cfg.AMQPTriggerQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
			eventsClient = nil
		} else {
			defer eventsClient.Close()
			orchOpts = append(orchOpts, services.WithEventSink(events.NewSink(eventsClient)))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - no sync events will be published")
	}

	orch := services.NewSyncOrchestrator(repo, prov, writer, mapper, aggregator, allocator, cfg.UserID, orchOpts...)

	syncWorker := worker.NewSyncWorker(orch, worker.Config{Interval: cfg.SyncInterval})
	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", "error", err)
		os.Exit(1)
	}

	// A configured user counts as a signed-in session for this process.
	syncWorker.SetAuthenticated(true)

	group, groupCtx := errgroup.WithContext(ctx)

	if eventsClient != nil {
		group.Go(func() error {
			err := eventsClient.ConsumeForceSync(groupCtx, func(msg *events.ForceSyncMessage) error {
				if msg.UserID != cfg.UserID {
					logger.Debug("Ignoring force-sync trigger for another user", "user", msg.UserID)
					return nil
				}
				syncWorker.ForceSyncNow()
				return nil
			})
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	group.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("Worker run failed", "error", err)
	}

	if err := syncWorker.Stop(context.Background()); err != nil {
		logger.Warn("Sync worker did not stop cleanly", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
