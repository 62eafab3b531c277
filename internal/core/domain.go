package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Account is a provider-issued account snapshot. Accounts are replaced
	// wholesale on each successful sync, upserted by ID and never deleted
	// implicitly.
	Account struct {
		ID          string
		Name        string
		Type        string
		Balance     decimal.Decimal
		Institution string
		LogoURL     string
	}

	// Transaction is a single ledger entry. Amount sign is load-bearing:
	// positive = expense, negative = income.
	Transaction struct {
		ID        string
		AccountID string
		Name      string
		Amount    decimal.Decimal
		Date      time.Time
		Category  string // raw provider label, mapped later
		Merchant  string
		Pending   bool
		Notes     string
		Tags      []string
		Hidden    bool
	}

	// BudgetCategory is a user-facing spending bucket with a budgeted amount.
	BudgetCategory struct {
		ID        string
		Name      string
		Budgeted  decimal.Decimal
		Icon      string
		Color     string
		Essential bool
	}

	// CategoryBudget is one entry of a MonthlyBudget's per-category map.
	CategoryBudget struct {
		Budget decimal.Decimal
		Spent  decimal.Decimal
	}

	// MonthlyBudget is the merged budget-vs-spend picture for one month key.
	// It is always written as a single document, never field by field.
	MonthlyBudget struct {
		Month       string // "YYYY-MM"
		TotalBudget decimal.Decimal
		TotalSpent  decimal.Decimal
		Categories  map[string]CategoryBudget
	}

	// CategorySpend pairs a canonical category name with a spend total.
	CategorySpend struct {
		Name   string
		Amount decimal.Decimal
	}

	// MonthlySummary is an immutable per-month snapshot, merge-upserted under
	// its month key.
	MonthlySummary struct {
		Month            string
		Income           decimal.Decimal
		Expenses         decimal.Decimal
		SavingsRate      float64 // percent, 0 when income is 0
		TopCategories    []CategorySpend
		ExpenseChangePct float64 // vs prior month's persisted expenses, 0 when absent
	}

	// SavingsTip is one heuristic recommendation. The whole tip set is
	// replaced on each regeneration.
	SavingsTip struct {
		ID               string
		Title            string
		Description      string
		Category         string
		PotentialSavings decimal.Decimal
		CreatedAt        time.Time
	}
)

// IsExpense reports whether the transaction is spend (positive amount).
func (t Transaction) IsExpense() bool {
	return t.Amount.IsPositive()
}

// IsIncome reports whether the transaction is income (negative amount).
func (t Transaction) IsIncome() bool {
	return t.Amount.IsNegative()
}

// NormalizeCategoryName trims and lowercases a category name. Two names that
// normalize equal refer to the same category.
func NormalizeCategoryName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: account id is empty", ErrValidation)
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: account name is empty", ErrValidation)
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: transaction id is empty", ErrValidation)
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return fmt.Errorf("%w: transaction account id is empty", ErrValidation)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: transaction date is zero", ErrValidation)
	}
	if len(t.Name) > 200 {
		return fmt.Errorf("%w: transaction name too long (max 200 characters)", ErrValidation)
	}
	return nil
}

func (c BudgetCategory) Validate() error {
	if NormalizeCategoryName(c.Name) == "" {
		return fmt.Errorf("%w: category name is empty", ErrValidation)
	}
	if len(c.Name) > 100 {
		return fmt.Errorf("%w: category name too long (max 100 characters)", ErrValidation)
	}
	if c.Budgeted.IsNegative() {
		return fmt.Errorf("%w: budgeted amount is negative", ErrValidation)
	}
	return nil
}
