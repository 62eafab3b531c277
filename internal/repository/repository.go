// Package repository is the typed persistence layer between the engine and
// the document store. Every document lives under the owning user's path
// prefix, and every method fails closed with ErrNotAuthenticated when no user
// identity is supplied.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledgersync/internal/cache"
	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

const (
	summaryCacheSize = 64
	summaryCacheTTL  = 10 * time.Minute
)

type Repository struct {
	store     store.Store
	summaries *cache.SummaryCache
}

func New(st store.Store) *Repository {
	return &Repository{
		store:     st,
		summaries: cache.NewSummaryCache(summaryCacheSize, summaryCacheTTL),
	}
}

// Store exposes the underlying document store for batch composition.
func (r *Repository) Store() store.Store {
	return r.store
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: no current user", core.ErrNotAuthenticated)
	}
	return nil
}

func userPrefix(userID string) string {
	return "users/" + userID
}

func accountsCollection(userID string) string     { return userPrefix(userID) + "/accounts" }
func transactionsCollection(userID string) string { return userPrefix(userID) + "/transactions" }
func categoriesCollection(userID string) string   { return userPrefix(userID) + "/categories" }
func summariesCollection(userID string) string    { return userPrefix(userID) + "/summaries" }
func budgetsCollection(userID string) string      { return userPrefix(userID) + "/budgets" }
func tipsCollection(userID string) string         { return userPrefix(userID) + "/tips" }
func settingsCollection(userID string) string     { return userPrefix(userID) + "/settings" }

// AccountOperations builds the merge-upsert batch operations for an account
// snapshot. Writes restate every field, so repeating a run is idempotent.
func (r *Repository) AccountOperations(userID string, accounts []core.Account) ([]store.Operation, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ops := make([]store.Operation, 0, len(accounts))
	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		ops = append(ops, store.SetMergeOp(accountsCollection(userID)+"/"+a.ID, encodeAccount(a)))
	}
	return ops, nil
}

// TransactionOperations builds merge-upsert operations for a transaction
// snapshot, keyed by the provider-issued identifier.
func (r *Repository) TransactionOperations(userID string, txs []core.Transaction) ([]store.Operation, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ops := make([]store.Operation, 0, len(txs))
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		ops = append(ops, store.SetMergeOp(transactionsCollection(userID)+"/"+t.ID, encodeTransaction(t)))
	}
	return ops, nil
}

func (r *Repository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, accountsCollection(userID))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts := make([]core.Account, 0, len(docs))
	for _, d := range docs {
		a, err := decodeAccount(store.DocumentID(d.Path), d.Fields)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, transactionsCollection(userID))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txs := make([]core.Transaction, 0, len(docs))
	for _, d := range docs {
		t, err := decodeTransaction(store.DocumentID(d.Path), d.Fields)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	return txs, nil
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}
	fields, err := r.store.Get(ctx, transactionsCollection(userID)+"/"+id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return decodeTransaction(id, fields)
}

// UpdateTransactionDetails merges user-editable metadata onto a transaction
// without touching its provider-owned fields.
func (r *Repository) UpdateTransactionDetails(ctx context.Context, userID, id, notes string, tags []string, hidden bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	fields := map[string]any{
		"notes":  notes,
		"tags":   tags,
		"hidden": hidden,
	}
	if err := r.store.SetMerge(ctx, transactionsCollection(userID)+"/"+id, fields); err != nil {
		return fmt.Errorf("update transaction %s details: %w", id, err)
	}
	return nil
}

// UpdateTransactionCategory overrides a single transaction's category label.
func (r *Repository) UpdateTransactionCategory(ctx context.Context, userID, id, category string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	fields := map[string]any{"category": category}
	if err := r.store.SetMerge(ctx, transactionsCollection(userID)+"/"+id, fields); err != nil {
		return fmt.Errorf("update transaction %s category: %w", id, err)
	}
	return nil
}

// AddManualTransaction stores a manually entered cash transaction. When the
// transaction carries no identifier a local one is generated.
func (r *Repository) AddManualTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(t.ID) == "" {
		t.ID = "cash-" + uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := r.store.SetMerge(ctx, transactionsCollection(userID)+"/"+t.ID, encodeTransaction(t)); err != nil {
		return core.Transaction{}, fmt.Errorf("add manual transaction: %w", err)
	}
	slog.InfoContext(ctx, "Manual transaction stored", "id", t.ID, "amount", t.Amount.String())
	return t, nil
}

// DisconnectAccountOperations builds the delete operations for a full account
// disconnect: the account document plus every transaction it owns. This is
// the only place transactions are bulk-deleted.
func (r *Repository) DisconnectAccountOperations(ctx context.Context, userID, accountID string) ([]store.Operation, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, transactionsCollection(userID),
		store.Filter{Field: "account_id", Value: accountID})
	if err != nil {
		return nil, fmt.Errorf("query account %s transactions: %w", accountID, err)
	}
	ops := make([]store.Operation, 0, len(docs)+1)
	for _, d := range docs {
		ops = append(ops, store.DeleteOp(d.Path))
	}
	ops = append(ops, store.DeleteOp(accountsCollection(userID)+"/"+accountID))
	return ops, nil
}
