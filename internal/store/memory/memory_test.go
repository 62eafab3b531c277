package memory

import (
	"context"
	"errors"
	"testing"

	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

func TestGetNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "users/u1/accounts/missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetMergePreservesUnspecifiedFields(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := "users/u1/transactions/tx1"

	if err := s.SetMerge(ctx, path, map[string]any{"name": "Coffee", "amount": "4.50"}); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if err := s.SetMerge(ctx, path, map[string]any{"notes": "team standup"}); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	doc, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["name"] != "Coffee" || doc["amount"] != "4.50" || doc["notes"] != "team standup" {
		t.Errorf("merge lost fields: %v", doc)
	}
}

func TestBatchCommitRejectsOversizedBatch(t *testing.T) {
	s := NewWithLimit(3)
	ops := make([]store.Operation, 4)
	for i := range ops {
		ops[i] = store.SetMergeOp("users/u1/accounts/a", map[string]any{"n": i})
	}
	err := s.BatchCommit(context.Background(), ops)
	if !errors.Is(err, core.ErrStoreWrite) {
		t.Fatalf("expected ErrStoreWrite, got %v", err)
	}
}

func TestBatchCommitAppliesSetAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.BatchCommit(ctx, []store.Operation{
		store.SetMergeOp("users/u1/tips/t1", map[string]any{"title": "a"}),
		store.SetMergeOp("users/u1/tips/t2", map[string]any{"title": "b"}),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	err = s.BatchCommit(ctx, []store.Operation{
		store.DeleteOp("users/u1/tips/t1"),
		store.SetMergeOp("users/u1/tips/t3", map[string]any{"title": "c"}),
	})
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}

	docs, err := s.Query(ctx, "users/u1/tips")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Path != "users/u1/tips/t2" || docs[1].Path != "users/u1/tips/t3" {
		t.Errorf("unexpected docs: %v", docs)
	}
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	s := New()

	seed := map[string]map[string]any{
		"users/u1/transactions/tx1": {"account_id": "acc-1", "pending": true},
		"users/u1/transactions/tx2": {"account_id": "acc-2", "pending": false},
		"users/u1/transactions/tx3": {"account_id": "acc-1", "pending": false},
		"users/u2/transactions/tx4": {"account_id": "acc-1", "pending": false},
	}
	for p, f := range seed {
		if err := s.SetMerge(ctx, p, f); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}

	docs, err := s.Query(ctx, "users/u1/transactions", store.Filter{Field: "account_id", Value: "acc-1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	for _, d := range docs {
		if d.Fields["account_id"] != "acc-1" {
			t.Errorf("filter leaked doc %s", d.Path)
		}
	}
}
