// Package services holds the sync engine: category mapping, batched writes,
// aggregation, budget allocation and the orchestrator that sequences them.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
	"ledgersync/internal/provider"
	"ledgersync/internal/repository"
)

// Sync phase names, fixed order.
const (
	PhaseAccounts     = "accounts"
	PhaseTransactions = "transactions"
	PhaseSummary      = "summary"
	PhaseBudget       = "budget"
)

// Progress spans per phase. The transactions span is subdivided by the
// batch writer's per-chunk reporting.
var (
	accountsSpan     = ProgressSpan{Base: 0, Span: 0.3}
	transactionsSpan = ProgressSpan{Base: 0.3, Span: 0.4}
	summarySpan      = ProgressSpan{Base: 0.7, Span: 0.2}
	budgetSpan       = ProgressSpan{Base: 0.9, Span: 0.1}
)

// Orchestrator outcomes for requests that do not start a run.
var (
	// ErrSyncInProgress rejects a non-forced request while a run is in flight.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrSyncQueued reports that a forced request arrived mid-run and one
	// follow-up run was queued behind it.
	ErrSyncQueued = errors.New("sync queued behind in-flight run")
	// ErrSyncThrottled rejects a non-forced request inside the minimum
	// interval since the last successful run.
	ErrSyncThrottled = errors.New("sync inside minimum interval")
)

// DefaultMinSyncInterval gates non-forced syncs.
const DefaultMinSyncInterval = time.Hour

// EventSink receives sync lifecycle notifications. Implementations must not
// block; a nil sink disables events.
type EventSink interface {
	SyncStarted(ctx context.Context, userID string, forced bool)
	SyncCompleted(ctx context.Context, userID string, duration time.Duration)
	SyncFailed(ctx context.Context, userID, phase string, err error)
}

// SyncStatus is a snapshot of the orchestrator's observable state.
type SyncStatus struct {
	Syncing      bool
	Progress     float64
	LastError    error
	LastSyncTime time.Time
}

// SyncOrchestrator owns the sync lifecycle for one user: single-flight
// guard, time gate, fixed phase order and progress reporting. Phases run
// fail-fast with no rollback; merge writes make a retry converge.
type SyncOrchestrator struct {
	repo       *repository.Repository
	provider   provider.Provider
	writer     *BatchWriter
	mapper     *CategoryMapper
	aggregator *AggregationEngine
	allocator  *AutoBudgetAllocator
	events     EventSink

	userID      string
	minInterval time.Duration
	now         func() time.Time

	mu           sync.Mutex
	syncing      bool
	pendingForce bool
	progress     float64
	lastError    error
	lastSyncTime time.Time
}

// OrchestratorOption tweaks construction.
type OrchestratorOption func(*SyncOrchestrator)

// WithMinSyncInterval overrides the non-forced time gate.
func WithMinSyncInterval(d time.Duration) OrchestratorOption {
	return func(o *SyncOrchestrator) { o.minInterval = d }
}

// WithEventSink attaches a lifecycle event sink.
func WithEventSink(sink EventSink) OrchestratorOption {
	return func(o *SyncOrchestrator) { o.events = sink }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *SyncOrchestrator) { o.now = now }
}

// NewSyncOrchestrator wires the orchestrator for a single user.
func NewSyncOrchestrator(repo *repository.Repository, p provider.Provider, writer *BatchWriter, mapper *CategoryMapper, aggregator *AggregationEngine, allocator *AutoBudgetAllocator, userID string, opts ...OrchestratorOption) *SyncOrchestrator {
	o := &SyncOrchestrator{
		repo:        repo,
		provider:    p,
		writer:      writer,
		mapper:      mapper,
		aggregator:  aggregator,
		allocator:   allocator,
		userID:      userID,
		minInterval: DefaultMinSyncInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns the current observable state.
func (o *SyncOrchestrator) Status() SyncStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return SyncStatus{
		Syncing:      o.syncing,
		Progress:     o.progress,
		LastError:    o.lastError,
		LastSyncTime: o.lastSyncTime,
	}
}

// PerformFullSync runs a complete sync if the guards allow it.
//
// A non-forced request is rejected with ErrSyncInProgress while a run is in
// flight and with ErrSyncThrottled inside the minimum interval since the
// last successful run. A forced request bypasses the time gate; arriving
// mid-run it queues exactly one follow-up run and returns ErrSyncQueued
// rather than overlapping writes with the in-flight run.
func (o *SyncOrchestrator) PerformFullSync(ctx context.Context, forced bool) error {
	if err := o.acquire(ctx, forced); err != nil {
		return err
	}

	for {
		err := o.runSync(ctx, forced)

		o.mu.Lock()
		rerun := o.pendingForce
		o.pendingForce = false
		if !rerun {
			o.syncing = false
		}
		o.mu.Unlock()

		if !rerun {
			return err
		}
		slog.InfoContext(ctx, "Running queued forced sync", "user", o.userID)
		forced = true
	}
}

// acquire takes the single-flight slot or reports why it could not.
func (o *SyncOrchestrator) acquire(ctx context.Context, forced bool) error {
	if strings.TrimSpace(o.userID) == "" {
		return fmt.Errorf("%w: no current user", core.ErrNotAuthenticated)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.syncing {
		if forced && !o.pendingForce {
			o.pendingForce = true
			return ErrSyncQueued
		}
		return ErrSyncInProgress
	}

	if !forced {
		last, err := o.repo.LastSyncTime(ctx, o.userID)
		if err != nil {
			return err
		}
		if !last.IsZero() && o.now().Sub(last) < o.minInterval {
			return ErrSyncThrottled
		}
	}

	o.syncing = true
	o.progress = 0
	o.lastError = nil
	return nil
}

// runSync executes the phase chain with the single-flight slot held.
func (o *SyncOrchestrator) runSync(ctx context.Context, forced bool) error {
	started := o.now()
	slog.InfoContext(ctx, "Starting sync", "user", o.userID, "forced", forced)
	if o.events != nil {
		o.events.SyncStarted(ctx, o.userID, forced)
	}

	err := o.syncPhases(ctx)
	if err != nil {
		phase := PhaseAccounts
		var perr *phaseError
		if errors.As(err, &perr) {
			phase = perr.phase
		}
		o.mu.Lock()
		o.lastError = err
		o.mu.Unlock()
		slog.ErrorContext(ctx, "Sync failed", "user", o.userID, "phase", phase, "error", err)
		if o.events != nil {
			o.events.SyncFailed(ctx, o.userID, phase, err)
		}
		return err
	}

	completedAt := o.now()
	if err := o.repo.SetLastSyncTime(ctx, o.userID, completedAt); err != nil {
		o.mu.Lock()
		o.lastError = err
		o.mu.Unlock()
		return err
	}
	o.mu.Lock()
	o.lastSyncTime = completedAt
	o.progress = 1
	o.mu.Unlock()

	duration := completedAt.Sub(started)
	slog.InfoContext(ctx, "Sync completed", "user", o.userID, "duration", duration)
	if o.events != nil {
		o.events.SyncCompleted(ctx, o.userID, duration)
	}
	return nil
}

// phaseError tags a failure with the phase it happened in.
type phaseError struct {
	phase string
	err   error
}

func (e *phaseError) Error() string { return fmt.Sprintf("%s phase: %v", e.phase, e.err) }
func (e *phaseError) Unwrap() error { return e.err }

// syncPhases runs accounts, transactions, summary and budget in order,
// aborting on the first failure.
func (o *SyncOrchestrator) syncPhases(ctx context.Context) error {
	report := o.setProgress

	accounts, err := o.provider.FetchAccounts(ctx)
	if err != nil {
		return &phaseError{phase: PhaseAccounts, err: err}
	}
	ops, err := o.repo.AccountOperations(o.userID, accounts)
	if err != nil {
		return &phaseError{phase: PhaseAccounts, err: err}
	}
	if err := o.writer.Write(ctx, ops, report, accountsSpan); err != nil {
		return &phaseError{phase: PhaseAccounts, err: err}
	}

	txs, err := o.provider.FetchTransactions(ctx)
	if err != nil {
		return &phaseError{phase: PhaseTransactions, err: err}
	}
	for i := range txs {
		txs[i].Category = o.mapper.Map(txs[i].Category)
	}
	txOps, err := o.repo.TransactionOperations(o.userID, txs)
	if err != nil {
		return &phaseError{phase: PhaseTransactions, err: err}
	}
	if err := o.writer.Write(ctx, txOps, report, transactionsSpan); err != nil {
		return &phaseError{phase: PhaseTransactions, err: err}
	}

	month := core.MonthKeyOf(o.now())
	all, err := o.repo.ListTransactions(ctx, o.userID)
	if err != nil {
		return &phaseError{phase: PhaseSummary, err: err}
	}
	summary, err := o.aggregator.ComputeMonthlySummary(ctx, o.userID, month, all)
	if err != nil {
		return &phaseError{phase: PhaseSummary, err: err}
	}
	if err := o.repo.PutMonthlySummary(ctx, o.userID, summary); err != nil {
		return &phaseError{phase: PhaseSummary, err: err}
	}
	if _, err := o.aggregator.GenerateSavingsTips(ctx, o.userID, month, all); err != nil {
		return &phaseError{phase: PhaseSummary, err: err}
	}
	report(summarySpan.Base + summarySpan.Span)

	if err := o.refreshMonthlyBudget(ctx, month, all); err != nil {
		return &phaseError{phase: PhaseBudget, err: err}
	}
	report(budgetSpan.Base + budgetSpan.Span)
	return nil
}

// refreshMonthlyBudget recomputes the budget-usage document for the month
// from the current categories and spending.
func (o *SyncOrchestrator) refreshMonthlyBudget(ctx context.Context, month string, txs []core.Transaction) error {
	categories, err := o.repo.ListCategories(ctx, o.userID)
	if err != nil {
		return err
	}
	spend := o.aggregator.SpendByCategory(txs, month)

	budget := core.MonthlyBudget{
		Month:      month,
		Categories: make(map[string]core.CategoryBudget, len(categories)),
	}
	for _, cat := range categories {
		spent := decimal.Zero
		if s, ok := spend[cat.Name]; ok {
			spent = s
		} else if s, ok := spend[o.mapper.Map(cat.Name)]; ok {
			// user-renamed category, match through the mapping table
			spent = s
		}
		budget.Categories[cat.Name] = core.CategoryBudget{Budget: cat.Budgeted, Spent: spent}
		budget.TotalBudget = budget.TotalBudget.Add(cat.Budgeted)
		budget.TotalSpent = budget.TotalSpent.Add(spent)
	}
	return o.repo.PutMonthlyBudget(ctx, o.userID, budget)
}

func (o *SyncOrchestrator) setProgress(fraction float64) {
	o.mu.Lock()
	if fraction > 1 {
		fraction = 1
	}
	o.progress = fraction
	o.mu.Unlock()
}

// UpdateTransactionDetails edits user-owned transaction metadata.
func (o *SyncOrchestrator) UpdateTransactionDetails(ctx context.Context, id, notes string, tags []string, hidden bool) error {
	return o.repo.UpdateTransactionDetails(ctx, o.userID, id, notes, tags, hidden)
}

// UpdateTransactionCategory recategorizes a transaction and records the
// choice as a mapping override so future syncs keep it.
func (o *SyncOrchestrator) UpdateTransactionCategory(ctx context.Context, id, category string) error {
	tx, err := o.repo.GetTransaction(ctx, o.userID, id)
	if err != nil {
		return err
	}
	if err := o.repo.UpdateTransactionCategory(ctx, o.userID, id, category); err != nil {
		return err
	}
	if tx.Category != "" && tx.Category != category {
		o.mapper.CreateMapping(ctx, tx.Category, category)
	}
	return nil
}

// DisconnectAccount removes an account and every transaction under it in
// one batched pass.
func (o *SyncOrchestrator) DisconnectAccount(ctx context.Context, accountID string) error {
	ops, err := o.repo.DisconnectAccountOperations(ctx, o.userID, accountID)
	if err != nil {
		return err
	}
	if err := o.writer.Write(ctx, ops, nil, ProgressSpan{}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Disconnected account", "user", o.userID, "account", accountID, "ops", len(ops))
	return nil
}

// GenerateRecommendedBudget builds and applies a recommended budget from the
// current month's income and spending.
func (o *SyncOrchestrator) GenerateRecommendedBudget(ctx context.Context) (RecommendedBudget, error) {
	month := core.MonthKeyOf(o.now())
	txs, err := o.repo.ListTransactions(ctx, o.userID)
	if err != nil {
		return RecommendedBudget{}, err
	}

	income := decimal.Zero
	for _, tx := range txs {
		if !tx.Hidden && tx.IsIncome() && core.MonthKeyOf(tx.Date) == month {
			income = income.Add(tx.Amount.Neg())
		}
	}

	rec := o.allocator.Recommend(income, o.aggregator.SpendByCategory(txs, month))
	if rec.UsedDefaultIncome {
		slog.WarnContext(ctx, "No income observed, recommending from default income",
			"user", o.userID, "default_income", o.allocator.cfg.DefaultIncome)
	}
	if err := o.allocator.Apply(ctx, o.userID, rec); err != nil {
		return RecommendedBudget{}, err
	}
	return rec, nil
}

// EnsureInitialMigration runs a forced first sync once per user and records
// the flag so later startups skip it.
func (o *SyncOrchestrator) EnsureInitialMigration(ctx context.Context) error {
	done, err := o.repo.InitialMigrationDone(ctx, o.userID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	slog.InfoContext(ctx, "Running initial migration sync", "user", o.userID)
	if err := o.PerformFullSync(ctx, true); err != nil {
		return err
	}
	return o.repo.SetInitialMigrationDone(ctx, o.userID, true)
}
