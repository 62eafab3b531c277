package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"ledgersync/internal/repository"
)

// FallbackCategory is returned when no mapping rule matches a raw label.
const FallbackCategory = "Other"

// CategoryMapper turns raw provider category labels into canonical budget
// category names. Mapping is a total function: it never fails, falling back
// to FallbackCategory.
//
// Lookup order, first match wins:
//  1. exact key in the override table, then the default table
//  2. raw label contains a mapping key (case-insensitive)
//  3. raw label contains a mapping value (the label already looks canonical)
//  4. FallbackCategory
type CategoryMapper struct {
	repo   *repository.Repository
	userID string

	mu        sync.RWMutex
	defaults  map[string]string
	overrides map[string]string
}

// NewCategoryMapper builds a mapper with the built-in default table. Call
// LoadOverrides to pull the user's persisted overrides into memory.
func NewCategoryMapper(repo *repository.Repository, userID string) *CategoryMapper {
	return &CategoryMapper{
		repo:      repo,
		userID:    userID,
		defaults:  defaultMappings(),
		overrides: make(map[string]string),
	}
}

// LoadOverrides replaces the in-memory override table with the persisted one.
func (m *CategoryMapper) LoadOverrides(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}
	overrides, err := m.repo.MappingOverrides(ctx, m.userID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.overrides = overrides
	m.mu.Unlock()
	return nil
}

// Map returns the canonical budget category for a raw label.
func (m *CategoryMapper) Map(raw string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 1. exact match, overrides before defaults
	if canonical, ok := m.overrides[raw]; ok {
		return canonical
	}
	if canonical, ok := m.defaults[raw]; ok {
		return canonical
	}

	lowered := strings.ToLower(raw)
	if lowered == "" {
		return FallbackCategory
	}

	// 2. raw label contains a mapping key
	if canonical, ok := matchKeySubstring(lowered, m.overrides); ok {
		return canonical
	}
	if canonical, ok := matchKeySubstring(lowered, m.defaults); ok {
		return canonical
	}

	// 3. raw label contains a canonical value
	if canonical, ok := matchValueSubstring(lowered, m.overrides); ok {
		return canonical
	}
	if canonical, ok := matchValueSubstring(lowered, m.defaults); ok {
		return canonical
	}

	return FallbackCategory
}

// CreateMapping records a user override. The in-memory table is updated
// immediately; persistence happens asynchronously and a failure there does
// not roll back the in-memory effect.
func (m *CategoryMapper) CreateMapping(ctx context.Context, raw, canonical string) {
	if raw == "" || canonical == "" {
		return
	}
	m.mu.Lock()
	m.overrides[raw] = canonical
	m.mu.Unlock()

	if m.repo == nil {
		return
	}
	go func() {
		if err := m.repo.SaveMappingOverride(context.WithoutCancel(ctx), m.userID, raw, canonical); err != nil {
			slog.WarnContext(ctx, "Failed to persist category mapping override",
				"raw", raw, "canonical", canonical, "error", err)
		}
	}()
}

// AssociatedLabels returns every raw label (default or override) that maps to
// the given canonical category. It is the inverse relation of Map, used when
// matching budget recommendations against spending history.
func (m *CategoryMapper) AssociatedLabels(canonical string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var labels []string
	add := func(table map[string]string) {
		for raw, c := range table {
			if c != canonical {
				continue
			}
			if _, ok := seen[raw]; ok {
				continue
			}
			seen[raw] = struct{}{}
			labels = append(labels, raw)
		}
	}
	// Overrides shadow defaults for the same raw label.
	add(m.overrides)
	for raw, c := range m.defaults {
		if c != canonical {
			continue
		}
		if shadow, ok := m.overrides[raw]; ok && shadow != canonical {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		labels = append(labels, raw)
	}
	sort.Strings(labels)
	return labels
}

// matchKeySubstring checks whether the lowered label contains any mapping
// key. Keys are scanned in sorted order so the result is deterministic when
// several keys match.
func matchKeySubstring(lowered string, table map[string]string) (string, bool) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(lowered, strings.ToLower(k)) {
			return table[k], true
		}
	}
	return "", false
}

func matchValueSubstring(lowered string, table map[string]string) (string, bool) {
	values := make(map[string]struct{}, len(table))
	for _, v := range table {
		values[v] = struct{}{}
	}
	sorted := make([]string, 0, len(values))
	for v := range values {
		sorted = append(sorted, v)
	}
	sort.Strings(sorted)
	for _, v := range sorted {
		if strings.Contains(lowered, strings.ToLower(v)) {
			return v, true
		}
	}
	return "", false
}

// defaultMappings is the built-in raw-label table. Raw labels arrive from the
// provider in inconsistent shapes; substring matching covers the long tail.
func defaultMappings() map[string]string {
	return map[string]string{
		// Housing
		"Rent":     "Housing",
		"Mortgage": "Housing",
		"Home":     "Housing",

		// Groceries
		"Groceries":     "Groceries",
		"Supermarkets":  "Groceries",
		"Grocery Store": "Groceries",

		// Transportation
		"Gas Stations":   "Transportation",
		"Uber":           "Transportation",
		"Lyft":           "Transportation",
		"Public Transit": "Transportation",
		"Parking":        "Transportation",
		"Automotive":     "Transportation",

		// Utilities
		"Utilities": "Utilities",
		"Electric":  "Utilities",
		"Water":     "Utilities",
		"Internet":  "Utilities",
		"Phone":     "Utilities",
		"Telecom":   "Utilities",

		// Dining
		"Restaurants":   "Dining",
		"Fast Food":     "Dining",
		"Coffee Shops":  "Dining",
		"Food Delivery": "Dining",
		"Bars":          "Dining",

		// Entertainment
		"Entertainment":      "Entertainment",
		"Streaming Services": "Entertainment",
		"Movies":             "Entertainment",
		"Music":              "Entertainment",
		"Video Games":        "Entertainment",

		// Shopping
		"Shopping":            "Shopping",
		"Department Stores":   "Shopping",
		"Clothing":            "Shopping",
		"Electronics":         "Shopping",
		"Online Marketplaces": "Shopping",

		// Travel
		"Travel":   "Travel",
		"Airlines": "Travel",
		"Hotels":   "Travel",
		"Lodging":  "Travel",

		// Health
		"Healthcare": "Health",
		"Pharmacies": "Health",
		"Gyms":       "Health",
		"Medical":    "Health",

		// Income
		"Payroll":  "Income",
		"Deposit":  "Income",
		"Interest": "Income",

		// Debt
		"Loan Payment":        "Debt Payment",
		"Credit Card Payment": "Debt Payment",
	}
}
