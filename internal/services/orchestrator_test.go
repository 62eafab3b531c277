package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
	"ledgersync/internal/provider"
	"ledgersync/internal/provider/fixture"
	"ledgersync/internal/repository"
	"ledgersync/internal/store/memory"
)

type orchestratorHarness struct {
	orch     *SyncOrchestrator
	repo     *repository.Repository
	provider *fixture.Provider
	events   *recordedEvents
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordedEvents struct {
	mu        sync.Mutex
	started   int
	completed int
	failed    []string
}

func (r *recordedEvents) SyncStarted(context.Context, string, bool) {
	r.mu.Lock()
	r.started++
	r.mu.Unlock()
}

func (r *recordedEvents) SyncCompleted(context.Context, string, time.Duration) {
	r.mu.Lock()
	r.completed++
	r.mu.Unlock()
}

func (r *recordedEvents) SyncFailed(_ context.Context, _, phase string, _ error) {
	r.mu.Lock()
	r.failed = append(r.failed, phase)
	r.mu.Unlock()
}

func newHarness(t *testing.T, p provider.Provider) *orchestratorHarness {
	t.Helper()
	repo := repository.New(memory.New())
	writer := NewBatchWriter(repo.Store())
	mapper := NewCategoryMapper(repo, "user-1")
	agg := NewAggregationEngine(repo, mapper, DefaultTipConfig())
	alloc := NewAutoBudgetAllocator(repo, writer, DefaultAllocatorConfig())

	clock := &fakeClock{now: time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)}
	agg.now = clock.Now
	events := &recordedEvents{}

	fix, ok := p.(*fixture.Provider)
	if p == nil {
		fix = fixture.New(nil, nil)
		p = fix
		ok = true
	}

	orch := NewSyncOrchestrator(repo, p, writer, mapper, agg, alloc, "user-1",
		WithClock(clock.Now),
		WithEventSink(events),
	)

	h := &orchestratorHarness{orch: orch, repo: repo, events: events, clock: clock}
	if ok {
		h.provider = fix
	}
	return h
}

func TestFullSyncHappyPath(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.provider.SetSnapshots(
		[]core.Account{{ID: "acc-1", Name: "Checking", Type: "depository", Balance: decimal.NewFromInt(1200)}},
		[]core.Transaction{
			{ID: "t1", AccountID: "acc-1", Name: "Payroll", Amount: decimal.NewFromInt(-4000), Date: h.clock.Now(), Category: "Payroll"},
			{ID: "t2", AccountID: "acc-1", Name: "Whole Foods", Amount: decimal.NewFromInt(250), Date: h.clock.Now(), Category: "Supermarkets"},
		},
	)

	if err := h.orch.PerformFullSync(ctx, false); err != nil {
		t.Fatalf("PerformFullSync: %v", err)
	}

	status := h.orch.Status()
	if status.Syncing {
		t.Error("still marked syncing after completion")
	}
	if status.Progress != 1 {
		t.Errorf("progress = %v, want 1", status.Progress)
	}
	if status.LastSyncTime.IsZero() {
		t.Error("last sync time not recorded")
	}

	txs, err := h.repo.ListTransactions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("stored %d transactions, want 2", len(txs))
	}
	for _, tx := range txs {
		if tx.ID == "t2" && tx.Category != "Groceries" {
			t.Errorf("t2 category = %q, want mapped Groceries", tx.Category)
		}
	}

	summary, err := h.repo.GetMonthlySummary(ctx, "user-1", "2026-06")
	if err != nil {
		t.Fatalf("GetMonthlySummary: %v", err)
	}
	if !summary.Income.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("summary income = %s, want 4000", summary.Income)
	}

	last, err := h.repo.LastSyncTime(ctx, "user-1")
	if err != nil || last.IsZero() {
		t.Errorf("persisted last sync time missing: %v %v", last, err)
	}
	if h.events.started != 1 || h.events.completed != 1 {
		t.Errorf("events started=%d completed=%d, want 1/1", h.events.started, h.events.completed)
	}
}

func TestTimeGate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.orch.PerformFullSync(ctx, false); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	h.clock.Advance(10 * time.Minute)
	if err := h.orch.PerformFullSync(ctx, false); !errors.Is(err, ErrSyncThrottled) {
		t.Errorf("non-forced inside interval: err = %v, want ErrSyncThrottled", err)
	}
	if err := h.orch.PerformFullSync(ctx, true); err != nil {
		t.Errorf("forced inside interval: %v", err)
	}

	h.clock.Advance(2 * time.Hour)
	if err := h.orch.PerformFullSync(ctx, false); err != nil {
		t.Errorf("non-forced after interval: %v", err)
	}
}

// countingProvider tracks how many times the remote is hit.
type countingProvider struct {
	fixture.Provider
	fetches int32
}

func (p *countingProvider) FetchAccounts(ctx context.Context) ([]core.Account, error) {
	atomic.AddInt32(&p.fetches, 1)
	return p.Provider.FetchAccounts(ctx)
}

func TestBlankUserFailsClosed(t *testing.T) {
	repo := repository.New(memory.New())
	writer := NewBatchWriter(repo.Store())
	mapper := NewCategoryMapper(repo, "")
	agg := NewAggregationEngine(repo, mapper, DefaultTipConfig())
	alloc := NewAutoBudgetAllocator(repo, writer, DefaultAllocatorConfig())
	counting := &countingProvider{}
	orch := NewSyncOrchestrator(repo, counting, writer, mapper, agg, alloc, "  ")

	for _, forced := range []bool{false, true} {
		err := orch.PerformFullSync(context.Background(), forced)
		if !errors.Is(err, core.ErrNotAuthenticated) {
			t.Errorf("forced=%v: err = %v, want ErrNotAuthenticated", forced, err)
		}
	}
	if n := atomic.LoadInt32(&counting.fetches); n != 0 {
		t.Errorf("provider was hit %d times with no user", n)
	}
}

// gatedProvider blocks FetchAccounts until released, so tests can observe the
// in-flight state.
type gatedProvider struct {
	fixture.Provider
	entered chan struct{}
	release chan struct{}
}

func (p *gatedProvider) FetchAccounts(ctx context.Context) ([]core.Account, error) {
	p.entered <- struct{}{}
	<-p.release
	return p.Provider.FetchAccounts(ctx)
}

func TestSingleFlightAndForceQueue(t *testing.T) {
	gate := &gatedProvider{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	h := newHarness(t, gate)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.orch.PerformFullSync(ctx, false) }()
	<-gate.entered

	if err := h.orch.PerformFullSync(ctx, false); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("concurrent non-forced: err = %v, want ErrSyncInProgress", err)
	}
	if err := h.orch.PerformFullSync(ctx, true); !errors.Is(err, ErrSyncQueued) {
		t.Errorf("concurrent forced: err = %v, want ErrSyncQueued", err)
	}
	if err := h.orch.PerformFullSync(ctx, true); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second concurrent forced: err = %v, want ErrSyncInProgress", err)
	}

	close(gate.release)
	<-gate.entered // the queued follow-up run starts

	if err := <-done; err != nil {
		t.Fatalf("sync returned error: %v", err)
	}
	if h.events.started != 2 {
		t.Errorf("started events = %d, want 2 (original plus queued)", h.events.started)
	}
	if h.orch.Status().Syncing {
		t.Error("still syncing after queued run finished")
	}
}

func TestPhaseFailureAbortsAndKeepsTimestamp(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.orch.PerformFullSync(ctx, true); err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	before, _ := h.repo.LastSyncTime(ctx, "user-1")

	h.clock.Advance(2 * time.Hour)
	h.provider.FailWith(errors.New("upstream down"))

	err := h.orch.PerformFullSync(ctx, false)
	if err == nil {
		t.Fatal("expected sync failure")
	}
	if !errors.Is(err, core.ErrProvider) {
		t.Errorf("err = %v, want wrapped ErrProvider", err)
	}

	status := h.orch.Status()
	if status.LastError == nil {
		t.Error("LastError not recorded")
	}
	if len(h.events.failed) != 1 || h.events.failed[0] != PhaseAccounts {
		t.Errorf("failed events = %v, want [%s]", h.events.failed, PhaseAccounts)
	}
	after, _ := h.repo.LastSyncTime(ctx, "user-1")
	if !after.Equal(before) {
		t.Errorf("failed sync moved last sync time %v -> %v", before, after)
	}
}

func TestUpdateTransactionCategoryRecordsMapping(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.provider.SetSnapshots(nil, []core.Transaction{
		{ID: "t1", AccountID: "acc-1", Name: "Corner Shop", Amount: decimal.NewFromInt(30), Date: h.clock.Now(), Category: "Misc Stuff"},
	})
	if err := h.orch.PerformFullSync(ctx, true); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if err := h.orch.UpdateTransactionCategory(ctx, "t1", "Groceries"); err != nil {
		t.Fatalf("UpdateTransactionCategory: %v", err)
	}

	tx, err := h.repo.GetTransaction(ctx, "user-1", "t1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.Category != "Groceries" {
		t.Errorf("category = %q, want Groceries", tx.Category)
	}
	if got := h.orch.mapper.Map("Other"); got != "Groceries" {
		t.Errorf("recategorization not recorded as override: Map(Other) = %q", got)
	}
}

func TestDisconnectAccountRemovesTransactions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.provider.SetSnapshots(
		[]core.Account{{ID: "acc-1", Name: "Checking", Type: "depository"}, {ID: "acc-2", Name: "Savings", Type: "depository"}},
		[]core.Transaction{
			{ID: "t1", AccountID: "acc-1", Name: "a", Amount: decimal.NewFromInt(10), Date: h.clock.Now(), Category: "Shopping"},
			{ID: "t2", AccountID: "acc-2", Name: "b", Amount: decimal.NewFromInt(20), Date: h.clock.Now(), Category: "Shopping"},
		},
	)
	if err := h.orch.PerformFullSync(ctx, true); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if err := h.orch.DisconnectAccount(ctx, "acc-1"); err != nil {
		t.Fatalf("DisconnectAccount: %v", err)
	}

	accounts, err := h.repo.ListAccounts(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != "acc-2" {
		t.Errorf("accounts after disconnect = %+v, want only acc-2", accounts)
	}
	txs, err := h.repo.ListTransactions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "t2" {
		t.Errorf("transactions after disconnect = %+v, want only t2", txs)
	}
}

func TestGenerateRecommendedBudgetEndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.provider.SetSnapshots(nil, []core.Transaction{
		{ID: "inc", AccountID: "acc-1", Name: "Payroll", Amount: decimal.NewFromInt(-5000), Date: h.clock.Now(), Category: "Payroll"},
		{ID: "t1", AccountID: "acc-1", Name: "Market", Amount: decimal.NewFromInt(400), Date: h.clock.Now(), Category: "Supermarkets"},
	})
	if err := h.orch.PerformFullSync(ctx, true); err != nil {
		t.Fatalf("sync: %v", err)
	}

	rec, err := h.orch.GenerateRecommendedBudget(ctx)
	if err != nil {
		t.Fatalf("GenerateRecommendedBudget: %v", err)
	}
	if rec.UsedDefaultIncome {
		t.Error("default income used despite observed payroll")
	}

	cats, err := h.repo.ListCategories(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	var groceries *core.BudgetCategory
	for i := range cats {
		if cats[i].Name == "Groceries" {
			groceries = &cats[i]
		}
	}
	if groceries == nil {
		t.Fatal("Groceries category not created")
	}
	if want := decimal.NewFromInt(440); !groceries.Budgeted.Equal(want) {
		t.Errorf("Groceries budget = %s, want %s from 400 spend with buffer", groceries.Budgeted, want)
	}
}

func TestEnsureInitialMigrationRunsOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.orch.EnsureInitialMigration(ctx); err != nil {
		t.Fatalf("first EnsureInitialMigration: %v", err)
	}
	if h.events.started != 1 {
		t.Fatalf("started events = %d, want 1", h.events.started)
	}

	h.clock.Advance(2 * time.Hour)
	if err := h.orch.EnsureInitialMigration(ctx); err != nil {
		t.Fatalf("second EnsureInitialMigration: %v", err)
	}
	if h.events.started != 1 {
		t.Errorf("migration sync ran twice: started = %d", h.events.started)
	}
}
