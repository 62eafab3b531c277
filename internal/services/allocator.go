package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
	"ledgersync/internal/repository"
	"ledgersync/internal/store"
)

// AllocatorConfig tunes the recommended-budget calculation.
type AllocatorConfig struct {
	// SpendBuffer pads observed spending to leave room for variance.
	SpendBuffer decimal.Decimal
	// DefaultIncome substitutes for income when none was observed.
	DefaultIncome decimal.Decimal
}

// DefaultAllocatorConfig returns the stock allocation parameters.
func DefaultAllocatorConfig() AllocatorConfig {
	return AllocatorConfig{
		SpendBuffer:   decimal.NewFromFloat(1.1),
		DefaultIncome: decimal.NewFromInt(5000),
	}
}

// categoryDefaults carries the fixed-table attributes the allocator uses
// when a category has no spending history or must be created.
type categoryDefaults struct {
	fraction  decimal.Decimal
	icon      string
	color     string
	essential bool
}

// allocationTable is the baseline split of monthly income across budget
// categories when there is no spending history to go on. The fractions sum
// to 1.
var allocationTable = map[string]categoryDefaults{
	"Housing":        {decimal.NewFromFloat(0.25), "home", "#4E79A7", true},
	"Groceries":      {decimal.NewFromFloat(0.10), "cart", "#59A14F", true},
	"Transportation": {decimal.NewFromFloat(0.10), "car", "#EDC948", true},
	"Utilities":      {decimal.NewFromFloat(0.05), "bolt", "#B07AA1", true},
	"Dining":         {decimal.NewFromFloat(0.10), "utensils", "#E15759", false},
	"Entertainment":  {decimal.NewFromFloat(0.05), "film", "#FF9DA7", false},
	"Shopping":       {decimal.NewFromFloat(0.10), "bag", "#F28E2B", false},
	"Travel":         {decimal.NewFromFloat(0.05), "plane", "#76B7B2", false},
	"Savings":        {decimal.NewFromFloat(0.15), "piggy-bank", "#9C755F", false},
	"Debt Payment":   {decimal.NewFromFloat(0.05), "credit-card", "#BAB0AC", true},
}

// BudgetRecommendation is one allocator suggestion for a category.
type BudgetRecommendation struct {
	Category string
	Amount   decimal.Decimal
	// FromSpending is true when the amount came from observed spend rather
	// than the income fraction.
	FromSpending bool
}

// RecommendedBudget is the full allocator output for a month.
type RecommendedBudget struct {
	Income          decimal.Decimal
	Recommendations []BudgetRecommendation
	// UsedDefaultIncome is set when no income was observed and the default
	// stood in for it.
	UsedDefaultIncome bool
}

// AutoBudgetAllocator proposes per-category budget amounts from observed
// income and spending, and applies them to the user's category documents.
type AutoBudgetAllocator struct {
	repo   *repository.Repository
	writer *BatchWriter
	cfg    AllocatorConfig
}

// NewAutoBudgetAllocator wires the allocator.
func NewAutoBudgetAllocator(repo *repository.Repository, writer *BatchWriter, cfg AllocatorConfig) *AutoBudgetAllocator {
	return &AutoBudgetAllocator{repo: repo, writer: writer, cfg: cfg}
}

// Recommend computes a budget over the union of the fixed table and the
// categories with observed spend. Any category with nonzero spend gets
// spend times the buffer, whether or not the table knows it; table
// categories without spend get their fraction of income. When income is
// not positive the default income stands in.
func (a *AutoBudgetAllocator) Recommend(income decimal.Decimal, spend map[string]decimal.Decimal) RecommendedBudget {
	out := RecommendedBudget{Income: income}
	if !income.IsPositive() {
		out.Income = a.cfg.DefaultIncome
		out.UsedDefaultIncome = true
	}

	seen := make(map[string]struct{}, len(allocationTable)+len(spend))
	names := make([]string, 0, len(allocationTable)+len(spend))
	for name := range allocationTable {
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for name := range spend {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		rec := BudgetRecommendation{Category: name}
		if observed, ok := spend[name]; ok && observed.IsPositive() {
			rec.Amount = observed.Mul(a.cfg.SpendBuffer).Round(2)
			rec.FromSpending = true
		} else if defaults, ok := allocationTable[name]; ok {
			rec.Amount = out.Income.Mul(defaults.fraction).Round(2)
		} else {
			continue
		}
		out.Recommendations = append(out.Recommendations, rec)
	}
	return out
}

// Apply reconciles a recommendation against the user's existing categories
// and writes the result in one batched pass. Existing categories keep their
// icon, color and essential flag; only the budgeted amount changes. Missing
// categories are created. The full operation set is computed before any
// write so a failure leaves no half-applied plan beyond complete batches.
func (a *AutoBudgetAllocator) Apply(ctx context.Context, userID string, rec RecommendedBudget) error {
	existing, err := a.repo.ListCategories(ctx, userID)
	if err != nil {
		return err
	}
	byName := make(map[string]core.BudgetCategory, len(existing))
	for _, cat := range existing {
		byName[core.NormalizeCategoryName(cat.Name)] = cat
	}

	var ops []store.Operation
	for _, r := range rec.Recommendations {
		if cat, ok := byName[core.NormalizeCategoryName(r.Category)]; ok {
			ops = append(ops, a.repo.CategoryAmountOp(userID, cat.ID, r.Amount))
			continue
		}
		defaults := allocationTable[r.Category]
		created := core.BudgetCategory{
			Name:      r.Category,
			Budgeted:  r.Amount,
			Icon:      defaults.icon,
			Color:     defaults.color,
			Essential: defaults.essential,
		}
		_, op := a.repo.CategoryCreateOp(userID, created)
		ops = append(ops, op)
	}

	if err := a.writer.Write(ctx, ops, nil, ProgressSpan{}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Applied recommended budget",
		"user", userID, "categories", len(ops), "default_income", rec.UsedDefaultIncome)
	return nil
}
