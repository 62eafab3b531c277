package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ledgersync/internal/store"
	"ledgersync/internal/store/memory"
)

// recordingStore tracks the size of every committed batch.
type recordingStore struct {
	store.Store
	batches []int
	failAt  int // 1-based batch index to fail on, 0 disables
}

func (s *recordingStore) BatchCommit(ctx context.Context, ops []store.Operation) error {
	s.batches = append(s.batches, len(ops))
	if s.failAt > 0 && len(s.batches) == s.failAt {
		return errors.New("commit refused")
	}
	return s.Store.BatchCommit(ctx, ops)
}

func makeOps(n int) []store.Operation {
	ops := make([]store.Operation, n)
	for i := range ops {
		ops[i] = store.SetMergeOp(fmt.Sprintf("users/u/transactions/tx-%04d", i), map[string]any{"i": i})
	}
	return ops
}

func TestBatchWriterChunkBound(t *testing.T) {
	rec := &recordingStore{Store: memory.New()}
	w := NewBatchWriter(rec)

	limit := rec.BatchLimit() - batchHeadroom
	if w.ChunkSize() != limit {
		t.Fatalf("ChunkSize = %d, want %d", w.ChunkSize(), limit)
	}

	n := limit*2 + 7
	if err := w.Write(context.Background(), makeOps(n), nil, ProgressSpan{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(rec.batches) != 3 {
		t.Fatalf("issued %d batches, want 3", len(rec.batches))
	}
	for i, size := range rec.batches {
		if size > limit {
			t.Errorf("batch %d has %d ops, exceeds bound %d", i+1, size, limit)
		}
	}
	if rec.batches[2] != 7 {
		t.Errorf("final batch has %d ops, want 7", rec.batches[2])
	}
}

func TestBatchWriterIdempotent(t *testing.T) {
	mem := memory.New()
	w := NewBatchWriter(mem)
	ops := makeOps(25)

	if err := w.Write(context.Background(), ops, nil, ProgressSpan{}); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	first := mem.Len()
	if err := w.Write(context.Background(), ops, nil, ProgressSpan{}); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if mem.Len() != first {
		t.Errorf("second run changed document count: %d -> %d", first, mem.Len())
	}
}

func TestBatchWriterStopsOnFailure(t *testing.T) {
	rec := &recordingStore{Store: memory.New(), failAt: 2}
	w := NewBatchWriter(rec)

	err := w.Write(context.Background(), makeOps(w.ChunkSize()*3), nil, ProgressSpan{})
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
	if len(rec.batches) != 2 {
		t.Errorf("issued %d batches after failure, want 2", len(rec.batches))
	}
	if want := "batch 2/3"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not name failing batch %q", err, want)
	}
}

func TestBatchWriterProgressSpan(t *testing.T) {
	w := NewBatchWriter(memory.New())

	var reported []float64
	progress := func(f float64) { reported = append(reported, f) }

	span := ProgressSpan{Base: 0.3, Span: 0.4}
	if err := w.Write(context.Background(), makeOps(w.ChunkSize()*2), progress, span); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(reported) != 2 {
		t.Fatalf("got %d progress reports, want 2", len(reported))
	}
	if got, want := reported[0], 0.5; !closeTo(got, want) {
		t.Errorf("first report = %v, want %v", got, want)
	}
	if got, want := reported[1], 0.7; !closeTo(got, want) {
		t.Errorf("second report = %v, want %v", got, want)
	}

	reported = nil
	if err := w.Write(context.Background(), nil, progress, span); err != nil {
		t.Fatalf("empty Write: %v", err)
	}
	if len(reported) != 1 || !closeTo(reported[0], 0.7) {
		t.Errorf("empty input reports %v, want single 0.7", reported)
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
