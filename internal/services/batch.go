package services

import (
	"context"
	"fmt"
	"log/slog"

	"ledgersync/internal/store"
)

// batchHeadroom keeps each chunk safely under the store's per-commit limit
// so that adapters counting internal bookkeeping writes still fit.
const batchHeadroom = 50

// ProgressFunc receives overall sync progress in [0,1].
type ProgressFunc func(fraction float64)

// ProgressSpan maps a writer's local completion onto a slice of the overall
// progress bar: reported progress is Base + local*Span.
type ProgressSpan struct {
	Base float64
	Span float64
}

// BatchWriter commits large operation sets in sequential chunks sized to the
// store's batch limit. Chunks run strictly in order; a failed chunk aborts
// the run with the failing index in the error. Operations are merge-writes,
// so re-running after a partial failure converges rather than duplicating.
type BatchWriter struct {
	store     store.Store
	chunkSize int
}

// NewBatchWriter derives the chunk size from the store's advertised limit.
func NewBatchWriter(st store.Store) *BatchWriter {
	size := st.BatchLimit() - batchHeadroom
	if size < 1 {
		size = 1
	}
	return &BatchWriter{store: st, chunkSize: size}
}

// ChunkSize reports how many operations go into each commit.
func (w *BatchWriter) ChunkSize() int { return w.chunkSize }

// Write commits ops in order, reporting progress after each chunk. progress
// and span are optional; with a nil progress no reporting happens.
func (w *BatchWriter) Write(ctx context.Context, ops []store.Operation, progress ProgressFunc, span ProgressSpan) error {
	if len(ops) == 0 {
		if progress != nil {
			progress(span.Base + span.Span)
		}
		return nil
	}

	total := (len(ops) + w.chunkSize - 1) / w.chunkSize
	for k := 0; k < total; k++ {
		start := k * w.chunkSize
		end := start + w.chunkSize
		if end > len(ops) {
			end = len(ops)
		}
		if err := w.store.BatchCommit(ctx, ops[start:end]); err != nil {
			return fmt.Errorf("batch %d/%d: %w", k+1, total, err)
		}
		slog.DebugContext(ctx, "Committed batch", "batch", k+1, "total", total, "ops", end-start)
		if progress != nil {
			progress(span.Base + float64(k+1)/float64(total)*span.Span)
		}
	}
	return nil
}
