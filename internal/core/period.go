// Package core holds the typed entities and calendar helpers shared by the
// sync, aggregation and budgeting services. Amount sign convention: positive
// amounts are expenses, negative amounts are income.
package core

import (
	"fmt"
	"time"
)

// monthKeyLayout is the "YYYY-MM" period key used for all monthly documents.
const monthKeyLayout = "2006-01"

// MonthKeyOf returns the period key for the calendar month containing t.
func MonthKeyOf(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// ParseMonthKey parses a "YYYY-MM" key into the first instant of that month (UTC).
func ParseMonthKey(key string) (time.Time, error) {
	t, err := time.Parse(monthKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid month key %q", ErrValidation, key)
	}
	return t, nil
}

// PrevMonthKey returns the key of the month before the given one.
func PrevMonthKey(key string) (string, error) {
	t, err := ParseMonthKey(key)
	if err != nil {
		return "", err
	}
	return MonthKeyOf(t.AddDate(0, -1, 0)), nil
}

// SameMonth reports whether t falls in the calendar month identified by key.
func SameMonth(t time.Time, key string) bool {
	return MonthKeyOf(t) == key
}
