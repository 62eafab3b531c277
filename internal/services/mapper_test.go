package services

import (
	"context"
	"testing"

	"ledgersync/internal/repository"
	"ledgersync/internal/store/memory"
)

func TestMapperTotalFunction(t *testing.T) {
	m := NewCategoryMapper(nil, "user-1")

	cases := []struct {
		raw  string
		want string
	}{
		{"Groceries", "Groceries"},
		{"Supermarkets", "Groceries"},
		{"WHOLE FOODS GROCERY STORE #123", "Groceries"},
		{"Uber Trip 4823", "Transportation"},
		{"Rent payment", "Housing"},
		{"Something entirely unknown", "Other"},
		{"", "Other"},
	}
	for _, tc := range cases {
		if got := m.Map(tc.raw); got != tc.want {
			t.Errorf("Map(%q) = %q, want %q", tc.raw, got, tc.want)
		}
		if m.Map(tc.raw) == "" {
			t.Errorf("Map(%q) returned empty string", tc.raw)
		}
	}
}

func TestMapperOverridePrecedence(t *testing.T) {
	ctx := context.Background()
	m := NewCategoryMapper(nil, "user-1")

	if got := m.Map("Restaurants"); got != "Dining" {
		t.Fatalf("default Map(Restaurants) = %q, want Dining", got)
	}

	m.CreateMapping(ctx, "Restaurants", "Entertainment")
	if got := m.Map("Restaurants"); got != "Entertainment" {
		t.Errorf("after override, Map(Restaurants) = %q, want Entertainment", got)
	}
}

func TestMapperLoadOverrides(t *testing.T) {
	ctx := context.Background()
	repo := repository.New(memory.New())
	if err := repo.SaveMappingOverride(ctx, "user-1", "My Corner Shop", "Groceries"); err != nil {
		t.Fatalf("SaveMappingOverride: %v", err)
	}

	m := NewCategoryMapper(repo, "user-1")
	if got := m.Map("My Corner Shop"); got != "Other" {
		t.Fatalf("before load, Map = %q, want Other", got)
	}
	if err := m.LoadOverrides(ctx); err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if got := m.Map("My Corner Shop"); got != "Groceries" {
		t.Errorf("after load, Map = %q, want Groceries", got)
	}
}

func TestMapperAssociatedLabels(t *testing.T) {
	ctx := context.Background()
	m := NewCategoryMapper(nil, "user-1")
	m.CreateMapping(ctx, "Local Diner", "Dining")

	labels := m.AssociatedLabels("Dining")
	if len(labels) == 0 {
		t.Fatal("expected labels for Dining")
	}
	for _, label := range labels {
		if got := m.Map(label); got != "Dining" {
			t.Errorf("label %q maps to %q, breaking the inverse relation", label, got)
		}
	}
	found := false
	for _, label := range labels {
		if label == "Local Diner" {
			found = true
		}
	}
	if !found {
		t.Error("override label missing from AssociatedLabels")
	}
}
