package cache

import (
	"fmt"
	"testing"
	"time"

	"ledgersync/internal/core"
)

func TestGetMissThenHit(t *testing.T) {
	c := NewSummaryCache(4, time.Minute)

	if _, ok := c.Get("u1", "2025-06"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Set("u1", "2025-06", core.MonthlySummary{Month: "2025-06"})
	got, ok := c.Get("u1", "2025-06")
	if !ok || got.Month != "2025-06" {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}

	// Same month for another user is a separate entry.
	if _, ok := c.Get("u2", "2025-06"); ok {
		t.Errorf("cache leaked across users")
	}
}

func TestInvalidate(t *testing.T) {
	c := NewSummaryCache(4, time.Minute)
	c.Set("u1", "2025-06", core.MonthlySummary{Month: "2025-06"})
	c.Invalidate("u1", "2025-06")
	if _, ok := c.Get("u1", "2025-06"); ok {
		t.Fatalf("expected entry gone after invalidate")
	}
}

func TestEvictionKeepsMostRecent(t *testing.T) {
	c := NewSummaryCache(2, time.Minute)
	for i := 1; i <= 3; i++ {
		month := fmt.Sprintf("2025-0%d", i)
		c.Set("u1", month, core.MonthlySummary{Month: month})
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
	if _, ok := c.Get("u1", "2025-01"); ok {
		t.Errorf("oldest entry should have been evicted")
	}
	if _, ok := c.Get("u1", "2025-03"); !ok {
		t.Errorf("newest entry should survive")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewSummaryCache(4, 10*time.Millisecond)
	c.Set("u1", "2025-06", core.MonthlySummary{Month: "2025-06"})
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("u1", "2025-06"); ok {
		t.Fatalf("expected expired entry")
	}
}
