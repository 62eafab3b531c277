// Package worker drives the orchestrator from a session-scoped timer:
// periodic syncs run while the user session is authenticated, the timer is
// torn down on sign-out and recreated on sign-in.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledgersync/internal/services"
)

// Config holds configuration for the sync worker
type Config struct {
	// Interval is the periodic sync cadence (default: the orchestrator's
	// minimum sync interval)
	Interval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{Interval: services.DefaultMinSyncInterval}
}

// SyncWorker owns the periodic trigger for one user session.
type SyncWorker struct {
	orch   *services.SyncOrchestrator
	config Config

	authCh  chan bool
	forceCh chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(orch *services.SyncOrchestrator, config Config) *SyncWorker {
	if config.Interval <= 0 {
		config.Interval = services.DefaultMinSyncInterval
	}
	return &SyncWorker{
		orch:    orch,
		config:  config,
		authCh:  make(chan bool, 1),
		forceCh: make(chan struct{}, 1),
	}
}

// Start begins the trigger loop. Returns an error if already running. The
// loop idles until SetAuthenticated(true) arrives.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Sync worker started", "interval", w.config.Interval)
	return nil
}

// Stop gracefully stops the worker and waits for completion.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Sync worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// SetAuthenticated tells the worker the session's authentication state
// changed. Signing in starts the periodic timer and triggers an immediate
// sync; signing out tears the timer down.
func (w *SyncWorker) SetAuthenticated(authed bool) {
	// keep only the latest state if the loop is mid-sync
	select {
	case <-w.authCh:
	default:
	}
	w.authCh <- authed
}

// ForceSyncNow requests an immediate forced sync. Coalesces with a pending
// request.
func (w *SyncWorker) ForceSyncNow() {
	select {
	case w.forceCh <- struct{}{}:
	default:
	}
}

// runLoop is the main trigger loop. The ticker exists only while the session
// is authenticated so no recurring timer leaks across sessions.
func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	var ticker *time.Ticker
	var tick <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tick = nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case authed := <-w.authCh:
			if !authed {
				stopTicker()
				slog.InfoContext(ctx, "Session signed out, periodic sync disabled")
				continue
			}
			if ticker != nil {
				continue
			}
			slog.InfoContext(ctx, "Session authenticated, periodic sync enabled")
			if err := w.orch.EnsureInitialMigration(ctx); err != nil {
				slog.ErrorContext(ctx, "Initial migration sync failed", "error", err)
			}
			w.sync(ctx, false)
			ticker = time.NewTicker(w.config.Interval)
			tick = ticker.C
		case <-tick:
			w.sync(ctx, false)
		case <-w.forceCh:
			w.sync(ctx, true)
		}
	}
}

func (w *SyncWorker) sync(ctx context.Context, forced bool) {
	err := w.orch.PerformFullSync(ctx, forced)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSyncThrottled),
		errors.Is(err, services.ErrSyncInProgress),
		errors.Is(err, services.ErrSyncQueued):
		slog.DebugContext(ctx, "Sync not started", "reason", err, "forced", forced)
	default:
		slog.ErrorContext(ctx, "Sync failed", "error", err, "forced", forced)
	}
}
