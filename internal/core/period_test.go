package core

import (
	"testing"
	"time"
)

func TestMonthKeyOf(t *testing.T) {
	ts := time.Date(2025, 3, 17, 14, 5, 0, 0, time.UTC)
	if got := MonthKeyOf(ts); got != "2025-03" {
		t.Errorf("got %q, want 2025-03", got)
	}
}

func TestParseMonthKey(t *testing.T) {
	got, err := ParseMonthKey("2025-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	for _, bad := range []string{"", "2025", "2025-13", "march"} {
		if _, err := ParseMonthKey(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestPrevMonthKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-03", "2025-02"},
		{"2025-01", "2024-12"},
	}
	for _, tc := range cases {
		got, err := PrevMonthKey(tc.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSameMonth(t *testing.T) {
	in := time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)
	if !SameMonth(in, "2025-06") {
		t.Errorf("expected %v in 2025-06", in)
	}
	if SameMonth(in, "2025-07") {
		t.Errorf("did not expect %v in 2025-07", in)
	}
}
