package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

func (r *Repository) ListCategories(ctx context.Context, userID string) ([]core.BudgetCategory, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, categoriesCollection(userID))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories := make([]core.BudgetCategory, 0, len(docs))
	for _, d := range docs {
		c, err := decodeCategory(store.DocumentID(d.Path), d.Fields)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// CreateCategory stores a new budget category. Names are unique per user
// after normalization; a clash rejects only this operation.
func (r *Repository) CreateCategory(ctx context.Context, userID string, c core.BudgetCategory) (core.BudgetCategory, error) {
	if err := requireUser(userID); err != nil {
		return core.BudgetCategory{}, err
	}
	if err := c.Validate(); err != nil {
		return core.BudgetCategory{}, err
	}

	existing, err := r.ListCategories(ctx, userID)
	if err != nil {
		return core.BudgetCategory{}, err
	}
	normalized := core.NormalizeCategoryName(c.Name)
	for _, e := range existing {
		if core.NormalizeCategoryName(e.Name) == normalized {
			return core.BudgetCategory{}, fmt.Errorf("%w: category %q already exists", core.ErrValidation, e.Name)
		}
	}

	c.ID = uuid.NewString()
	if err := r.store.SetMerge(ctx, categoriesCollection(userID)+"/"+c.ID, encodeCategory(c)); err != nil {
		return core.BudgetCategory{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// CategoryAmountOp builds the merge operation that updates only a category's
// budgeted amount, preserving icon, color and essential flag.
func (r *Repository) CategoryAmountOp(userID, categoryID string, amount decimal.Decimal) store.Operation {
	return store.SetMergeOp(categoriesCollection(userID)+"/"+categoryID,
		map[string]any{"budgeted": amount.String()})
}

// CategoryCreateOp builds the merge operation that creates a category with a
// fresh store-assigned identifier, returning the category with its ID set.
func (r *Repository) CategoryCreateOp(userID string, c core.BudgetCategory) (core.BudgetCategory, store.Operation) {
	c.ID = uuid.NewString()
	return c, store.SetMergeOp(categoriesCollection(userID)+"/"+c.ID, encodeCategory(c))
}
