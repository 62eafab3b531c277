package worker

import (
	"context"
	"testing"
	"time"

	"ledgersync/internal/provider/fixture"
	"ledgersync/internal/repository"
	"ledgersync/internal/services"
	"ledgersync/internal/store/memory"
)

func newTestWorker(t *testing.T, interval time.Duration) (*SyncWorker, *repository.Repository) {
	t.Helper()
	repo := repository.New(memory.New())
	writer := services.NewBatchWriter(repo.Store())
	mapper := services.NewCategoryMapper(repo, "user-1")
	agg := services.NewAggregationEngine(repo, mapper, services.DefaultTipConfig())
	alloc := services.NewAutoBudgetAllocator(repo, writer, services.DefaultAllocatorConfig())
	orch := services.NewSyncOrchestrator(repo, fixture.New(nil, nil), writer, mapper, agg, alloc, "user-1")
	return NewSyncWorker(orch, Config{Interval: interval}), repo
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWorkerLifecycle(t *testing.T) {
	w, _ := newTestWorker(t, time.Hour)
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.IsRunning() {
		t.Error("IsRunning false after Start")
	}
	if err := w.Start(ctx); err == nil {
		t.Error("second Start did not fail")
	}
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.IsRunning() {
		t.Error("IsRunning true after Stop")
	}
	if err := w.Stop(ctx); err != nil {
		t.Errorf("idempotent Stop: %v", err)
	}
}

func TestWorkerSyncsOnAuthentication(t *testing.T) {
	w, repo := newTestWorker(t, time.Hour)
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop(ctx)

	w.SetAuthenticated(true)

	waitFor(t, 2*time.Second, func() bool {
		last, err := repo.LastSyncTime(ctx, "user-1")
		return err == nil && !last.IsZero()
	})

	done, err := repo.InitialMigrationDone(ctx, "user-1")
	if err != nil {
		t.Fatalf("InitialMigrationDone: %v", err)
	}
	if !done {
		t.Error("initial migration flag not set after first authenticated sync")
	}
}

func TestWorkerForceSync(t *testing.T) {
	w, repo := newTestWorker(t, time.Hour)
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop(ctx)

	// forced sync works without the periodic timer ever starting
	w.ForceSyncNow()

	waitFor(t, 2*time.Second, func() bool {
		last, err := repo.LastSyncTime(ctx, "user-1")
		return err == nil && !last.IsZero()
	})
}
