package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

// Documents cross the store boundary as flat field maps. Amounts travel as
// decimal strings so nothing is lost to floating point; times as RFC3339.

func encodeAccount(a core.Account) map[string]any {
	return map[string]any{
		"name":        a.Name,
		"type":        a.Type,
		"balance":     a.Balance.String(),
		"institution": a.Institution,
		"logo_url":    a.LogoURL,
	}
}

func decodeAccount(id string, fields map[string]any) (core.Account, error) {
	balance, err := fieldDecimal(fields, "balance")
	if err != nil {
		return core.Account{}, fmt.Errorf("account %s: %w", id, err)
	}
	return core.Account{
		ID:          id,
		Name:        fieldString(fields, "name"),
		Type:        fieldString(fields, "type"),
		Balance:     balance,
		Institution: fieldString(fields, "institution"),
		LogoURL:     fieldString(fields, "logo_url"),
	}, nil
}

func encodeTransaction(t core.Transaction) map[string]any {
	return map[string]any{
		"account_id": t.AccountID,
		"name":       t.Name,
		"amount":     t.Amount.String(),
		"date":       t.Date.UTC().Format(time.RFC3339),
		"category":   t.Category,
		"merchant":   t.Merchant,
		"pending":    t.Pending,
		"notes":      t.Notes,
		"tags":       t.Tags,
		"hidden":     t.Hidden,
	}
}

func decodeTransaction(id string, fields map[string]any) (core.Transaction, error) {
	amount, err := fieldDecimal(fields, "amount")
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	date, err := fieldTime(fields, "date")
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	return core.Transaction{
		ID:        id,
		AccountID: fieldString(fields, "account_id"),
		Name:      fieldString(fields, "name"),
		Amount:    amount,
		Date:      date,
		Category:  fieldString(fields, "category"),
		Merchant:  fieldString(fields, "merchant"),
		Pending:   fieldBool(fields, "pending"),
		Notes:     fieldString(fields, "notes"),
		Tags:      fieldStrings(fields, "tags"),
		Hidden:    fieldBool(fields, "hidden"),
	}, nil
}

func encodeCategory(c core.BudgetCategory) map[string]any {
	return map[string]any{
		"name":      c.Name,
		"budgeted":  c.Budgeted.String(),
		"icon":      c.Icon,
		"color":     c.Color,
		"essential": c.Essential,
	}
}

func decodeCategory(id string, fields map[string]any) (core.BudgetCategory, error) {
	budgeted, err := fieldDecimal(fields, "budgeted")
	if err != nil {
		return core.BudgetCategory{}, fmt.Errorf("category %s: %w", id, err)
	}
	return core.BudgetCategory{
		ID:        id,
		Name:      fieldString(fields, "name"),
		Budgeted:  budgeted,
		Icon:      fieldString(fields, "icon"),
		Color:     fieldString(fields, "color"),
		Essential: fieldBool(fields, "essential"),
	}, nil
}

func encodeSummary(s core.MonthlySummary) map[string]any {
	top := make([]any, 0, len(s.TopCategories))
	for _, c := range s.TopCategories {
		top = append(top, map[string]any{"name": c.Name, "amount": c.Amount.String()})
	}
	return map[string]any{
		"income":             s.Income.String(),
		"expenses":           s.Expenses.String(),
		"savings_rate":       s.SavingsRate,
		"top_categories":     top,
		"expense_change_pct": s.ExpenseChangePct,
	}
}

func decodeSummary(month string, fields map[string]any) (core.MonthlySummary, error) {
	income, err := fieldDecimal(fields, "income")
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("summary %s: %w", month, err)
	}
	expenses, err := fieldDecimal(fields, "expenses")
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("summary %s: %w", month, err)
	}

	var top []core.CategorySpend
	if raw, ok := fields["top_categories"].([]any); ok {
		for _, item := range raw {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			amount, err := fieldDecimal(entry, "amount")
			if err != nil {
				return core.MonthlySummary{}, fmt.Errorf("summary %s top category: %w", month, err)
			}
			top = append(top, core.CategorySpend{
				Name:   fieldString(entry, "name"),
				Amount: amount,
			})
		}
	}

	return core.MonthlySummary{
		Month:            month,
		Income:           income,
		Expenses:         expenses,
		SavingsRate:      fieldFloat(fields, "savings_rate"),
		TopCategories:    top,
		ExpenseChangePct: fieldFloat(fields, "expense_change_pct"),
	}, nil
}

func encodeMonthlyBudget(b core.MonthlyBudget) map[string]any {
	cats := make(map[string]any, len(b.Categories))
	for name, cb := range b.Categories {
		cats[name] = map[string]any{
			"budget": cb.Budget.String(),
			"spent":  cb.Spent.String(),
		}
	}
	return map[string]any{
		"total_budget": b.TotalBudget.String(),
		"total_spent":  b.TotalSpent.String(),
		"categories":   cats,
	}
}

func encodeTip(t core.SavingsTip) map[string]any {
	return map[string]any{
		"title":             t.Title,
		"description":       t.Description,
		"category":          t.Category,
		"potential_savings": t.PotentialSavings.String(),
		"created_at":        t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeTip(id string, fields map[string]any) (core.SavingsTip, error) {
	savings, err := fieldDecimal(fields, "potential_savings")
	if err != nil {
		return core.SavingsTip{}, fmt.Errorf("tip %s: %w", id, err)
	}
	createdAt, err := fieldTime(fields, "created_at")
	if err != nil {
		return core.SavingsTip{}, fmt.Errorf("tip %s: %w", id, err)
	}
	return core.SavingsTip{
		ID:               id,
		Title:            fieldString(fields, "title"),
		Description:      fieldString(fields, "description"),
		Category:         fieldString(fields, "category"),
		PotentialSavings: savings,
		CreatedAt:        createdAt,
	}, nil
}

func fieldString(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func fieldBool(fields map[string]any, key string) bool {
	b, _ := fields[key].(bool)
	return b
}

func fieldFloat(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func fieldDecimal(fields map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return decimal.Zero, nil
	}
	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %s: invalid decimal %q", key, v)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	}
	return decimal.Zero, fmt.Errorf("field %s: unsupported decimal type %T", key, raw)
}

func fieldTime(fields map[string]any, key string) (time.Time, error) {
	raw := fieldString(fields, key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: invalid timestamp %q", key, raw)
	}
	return t, nil
}

// fieldStrings tolerates both []string (memory store) and []any (JSON round
// trip through the sqlite adapter).
func fieldStrings(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}
