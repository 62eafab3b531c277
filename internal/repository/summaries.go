package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

// GetMonthlySummary reads the persisted summary for a month key. Absent
// months surface ErrNotFound; the aggregation engine treats that as "no prior
// data", not a failure.
func (r *Repository) GetMonthlySummary(ctx context.Context, userID, month string) (core.MonthlySummary, error) {
	if err := requireUser(userID); err != nil {
		return core.MonthlySummary{}, err
	}
	if s, ok := r.summaries.Get(userID, month); ok {
		return s, nil
	}
	fields, err := r.store.Get(ctx, summariesCollection(userID)+"/"+month)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.MonthlySummary{}, fmt.Errorf("summary %s: %w", month, core.ErrNotFound)
		}
		return core.MonthlySummary{}, fmt.Errorf("get summary %s: %w", month, err)
	}
	s, err := decodeSummary(month, fields)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	r.summaries.Set(userID, month, s)
	return s, nil
}

// PutMonthlySummary merge-upserts the summary snapshot under its month key.
func (r *Repository) PutMonthlySummary(ctx context.Context, userID string, s core.MonthlySummary) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if s.Month == "" {
		return fmt.Errorf("%w: summary month key is empty", core.ErrValidation)
	}
	if err := r.store.SetMerge(ctx, summariesCollection(userID)+"/"+s.Month, encodeSummary(s)); err != nil {
		return fmt.Errorf("put summary %s: %w", s.Month, err)
	}
	r.summaries.Invalidate(userID, s.Month)
	r.summaries.Set(userID, s.Month, s)
	return nil
}

// PutMonthlyBudget writes the whole monthly budget document in one call; it
// is never written field by field.
func (r *Repository) PutMonthlyBudget(ctx context.Context, userID string, b core.MonthlyBudget) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if b.Month == "" {
		return fmt.Errorf("%w: budget month key is empty", core.ErrValidation)
	}
	if err := r.store.SetMerge(ctx, budgetsCollection(userID)+"/"+b.Month, encodeMonthlyBudget(b)); err != nil {
		return fmt.Errorf("put budget %s: %w", b.Month, err)
	}
	return nil
}

func (r *Repository) ListSavingsTips(ctx context.Context, userID string) ([]core.SavingsTip, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, tipsCollection(userID))
	if err != nil {
		return nil, fmt.Errorf("list savings tips: %w", err)
	}
	tips := make([]core.SavingsTip, 0, len(docs))
	for _, d := range docs {
		tip, err := decodeTip(store.DocumentID(d.Path), d.Fields)
		if err != nil {
			return nil, err
		}
		tips = append(tips, tip)
	}
	return tips, nil
}

// ReplaceSavingsTips deletes the user's entire tip set and inserts the new
// one in a single batch. Tips are never merged individually.
func (r *Repository) ReplaceSavingsTips(ctx context.Context, userID string, tips []core.SavingsTip) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	existing, err := r.store.Query(ctx, tipsCollection(userID))
	if err != nil {
		return fmt.Errorf("query existing tips: %w", err)
	}

	ops := make([]store.Operation, 0, len(existing)+len(tips))
	for _, d := range existing {
		ops = append(ops, store.DeleteOp(d.Path))
	}
	for _, tip := range tips {
		if tip.ID == "" {
			tip.ID = uuid.NewString()
		}
		ops = append(ops, store.SetMergeOp(tipsCollection(userID)+"/"+tip.ID, encodeTip(tip)))
	}
	if len(ops) == 0 {
		return nil
	}
	if err := r.store.BatchCommit(ctx, ops); err != nil {
		return fmt.Errorf("replace savings tips: %w", err)
	}
	return nil
}
