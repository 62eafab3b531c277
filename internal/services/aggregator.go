package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
	"ledgersync/internal/repository"
)

// TipConfig holds the thresholds the savings heuristics run on.
type TipConfig struct {
	// TopCategoryCutPct is the suggested reduction of the single largest
	// spending category, as a fraction.
	TopCategoryCutPct float64
	// DiningCountThreshold triggers the dining tip when the month has more
	// dining transactions than this.
	DiningCountThreshold int
	// DiningCutPct is the suggested reduction of dining spend.
	DiningCutPct float64
	// SubscriptionMin and SubscriptionMax bound the per-charge amount band
	// that flags a transaction as a likely subscription.
	SubscriptionMin decimal.Decimal
	SubscriptionMax decimal.Decimal
	// SubscriptionCutPct is the suggested reduction of flagged subscriptions.
	SubscriptionCutPct float64
	// TopCategories is how many categories the monthly summary ranks.
	TopCategories int
	// DiningKeywords match merchants and names of likely restaurants when
	// the category itself does not map to Dining.
	DiningKeywords []string
	// SubscriptionKeywords match charges that look like recurring digital
	// services.
	SubscriptionKeywords []string
}

// DefaultTipConfig returns the stock heuristic thresholds.
func DefaultTipConfig() TipConfig {
	return TipConfig{
		TopCategoryCutPct:    0.15,
		DiningCountThreshold: 5,
		DiningCutPct:         0.20,
		SubscriptionMin:      decimal.NewFromInt(5),
		SubscriptionMax:      decimal.NewFromInt(50),
		SubscriptionCutPct:   0.30,
		TopCategories:        5,
		DiningKeywords: []string{
			"restaurant", "cafe", "coffee", "diner", "grill", "pizza",
			"sushi", "bistro", "bar", "eatery", "trattoria",
		},
		SubscriptionKeywords: []string{
			"netflix", "spotify", "hulu", "disney", "subscription", "prime",
			"youtube", "apple.com", "icloud", "patreon", "membership",
		},
	}
}

// AggregationEngine derives monthly summaries, per-category spend and
// savings tips from the synced transaction history.
type AggregationEngine struct {
	repo   *repository.Repository
	mapper *CategoryMapper
	tips   TipConfig
	now    func() time.Time
}

// NewAggregationEngine wires the engine; cfg thresholds come from
// DefaultTipConfig unless overridden.
func NewAggregationEngine(repo *repository.Repository, mapper *CategoryMapper, cfg TipConfig) *AggregationEngine {
	return &AggregationEngine{repo: repo, mapper: mapper, tips: cfg, now: time.Now}
}

// SpendByCategory sums expense amounts per canonical category for a month.
// Hidden transactions and income are excluded.
func (e *AggregationEngine) SpendByCategory(txs []core.Transaction, month string) map[string]decimal.Decimal {
	spend := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Hidden || !tx.IsExpense() {
			continue
		}
		if core.MonthKeyOf(tx.Date) != month {
			continue
		}
		canonical := e.mapper.Map(tx.Category)
		spend[canonical] = spend[canonical].Add(tx.Amount)
	}
	return spend
}

// ComputeMonthlySummary builds the summary document for a month from its
// transactions. The month-over-month change compares against the persisted
// summary of the previous month; a missing or zero previous month yields 0.
func (e *AggregationEngine) ComputeMonthlySummary(ctx context.Context, userID, month string, txs []core.Transaction) (core.MonthlySummary, error) {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, tx := range txs {
		if tx.Hidden || core.MonthKeyOf(tx.Date) != month {
			continue
		}
		if tx.IsExpense() {
			expenses = expenses.Add(tx.Amount)
		} else {
			income = income.Add(tx.Amount.Neg())
		}
	}

	savingsRate := 0.0
	if income.IsPositive() {
		rate, _ := income.Sub(expenses).Div(income).Float64()
		savingsRate = rate * 100
	}

	spend := e.SpendByCategory(txs, month)
	top := topCategories(spend, e.tips.TopCategories)

	changePct := 0.0
	prevMonth, err := core.PrevMonthKey(month)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("summary for %s: %w", month, err)
	}
	prev, err := e.repo.GetMonthlySummary(ctx, userID, prevMonth)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// first synced month, no baseline
	case err != nil:
		return core.MonthlySummary{}, err
	case prev.Expenses.IsPositive():
		pct, _ := expenses.Sub(prev.Expenses).Div(prev.Expenses).Float64()
		changePct = pct * 100
	}

	return core.MonthlySummary{
		Month:            month,
		Income:           income,
		Expenses:         expenses,
		SavingsRate:      savingsRate,
		TopCategories:    top,
		ExpenseChangePct: changePct,
	}, nil
}

// GenerateSavingsTips runs the heuristics over a month's transactions and
// replaces the user's stored tips with the result.
func (e *AggregationEngine) GenerateSavingsTips(ctx context.Context, userID, month string, txs []core.Transaction) ([]core.SavingsTip, error) {
	var tips []core.SavingsTip
	createdAt := e.now().UTC()

	spend := e.SpendByCategory(txs, month)
	if top := topCategories(spend, 1); len(top) > 0 && top[0].Amount.IsPositive() {
		cut := top[0].Amount.Mul(decimal.NewFromFloat(e.tips.TopCategoryCutPct))
		tips = append(tips, core.SavingsTip{
			ID:    uuid.NewString(),
			Title: fmt.Sprintf("Trim your %s spending", top[0].Name),
			Description: fmt.Sprintf("%s was your biggest category this month at %s. Cutting it by %.0f%% would free up %s.",
				top[0].Name, top[0].Amount.StringFixed(2), e.tips.TopCategoryCutPct*100, cut.StringFixed(2)),
			Category:         top[0].Name,
			PotentialSavings: cut,
			CreatedAt:        createdAt,
		})
	}

	diningCount := 0
	diningTotal := decimal.Zero
	for _, tx := range txs {
		if tx.Hidden || !tx.IsExpense() || core.MonthKeyOf(tx.Date) != month {
			continue
		}
		if e.isDining(tx) {
			diningCount++
			diningTotal = diningTotal.Add(tx.Amount)
		}
	}
	if diningCount > e.tips.DiningCountThreshold {
		cut := diningTotal.Mul(decimal.NewFromFloat(e.tips.DiningCutPct))
		tips = append(tips, core.SavingsTip{
			ID:    uuid.NewString(),
			Title: "Eat out a little less",
			Description: fmt.Sprintf("You had %d dining transactions totalling %s. Cooking a few more meals could save around %s.",
				diningCount, diningTotal.StringFixed(2), cut.StringFixed(2)),
			Category:         "Dining",
			PotentialSavings: cut,
			CreatedAt:        createdAt,
		})
	}

	subTotal := decimal.Zero
	subCount := 0
	for _, tx := range txs {
		if tx.Hidden || !tx.IsExpense() || core.MonthKeyOf(tx.Date) != month {
			continue
		}
		if tx.Amount.LessThan(e.tips.SubscriptionMin) || tx.Amount.GreaterThan(e.tips.SubscriptionMax) {
			continue
		}
		if e.looksLikeSubscription(tx) {
			subCount++
			subTotal = subTotal.Add(tx.Amount)
		}
	}
	if subCount > 0 {
		cut := subTotal.Mul(decimal.NewFromFloat(e.tips.SubscriptionCutPct))
		tips = append(tips, core.SavingsTip{
			ID:    uuid.NewString(),
			Title: "Review your subscriptions",
			Description: fmt.Sprintf("Found %d subscription-like charges totalling %s. Cancelling unused ones could save %s.",
				subCount, subTotal.StringFixed(2), cut.StringFixed(2)),
			Category:         "Entertainment",
			PotentialSavings: cut,
			CreatedAt:        createdAt,
		})
	}

	if err := e.repo.ReplaceSavingsTips(ctx, userID, tips); err != nil {
		return nil, err
	}
	return tips, nil
}

// isDining treats a transaction as dining when its category maps there or
// when the merchant or name matches a dining keyword.
func (e *AggregationEngine) isDining(tx core.Transaction) bool {
	if e.mapper.Map(tx.Category) == "Dining" {
		return true
	}
	haystack := strings.ToLower(tx.Name + " " + tx.Merchant)
	for _, kw := range e.tips.DiningKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (e *AggregationEngine) looksLikeSubscription(tx core.Transaction) bool {
	haystack := strings.ToLower(tx.Name + " " + tx.Merchant + " " + tx.Category)
	for _, kw := range e.tips.SubscriptionKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// topCategories returns the n largest spend entries, descending by amount
// with name as tiebreak.
func topCategories(spend map[string]decimal.Decimal, n int) []core.CategorySpend {
	out := make([]core.CategorySpend, 0, len(spend))
	for name, amount := range spend {
		out = append(out, core.CategorySpend{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
