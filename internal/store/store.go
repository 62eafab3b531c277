// Package store defines the document-store port the engine writes through.
// Documents live at slash-separated paths ("users/u1/transactions/tx9"); the
// collection of a document is its path minus the final segment. Adapters own
// persistence; the engine only sees paths and field maps.
package store

import (
	"context"
	"strings"
)

// DefaultBatchLimit is the hard per-call operation cap a batch commit accepts,
// mirroring the usual document-store limit.
const DefaultBatchLimit = 500

// Document is a stored record: its path plus its current fields.
type Document struct {
	Path   string
	Fields map[string]any
}

// OpKind discriminates batch operations.
type OpKind int

const (
	OpSetMerge OpKind = iota
	OpDelete
)

// Operation is a single entry of an atomic batch commit.
type Operation struct {
	Kind   OpKind
	Path   string
	Fields map[string]any
}

// SetMergeOp builds a merge-upsert operation: create the document if absent,
// otherwise update only the given fields.
func SetMergeOp(path string, fields map[string]any) Operation {
	return Operation{Kind: OpSetMerge, Path: path, Fields: fields}
}

// DeleteOp builds a delete operation. Deleting an absent document is a no-op.
func DeleteOp(path string) Operation {
	return Operation{Kind: OpDelete, Path: path}
}

// Filter is a field-equality query constraint.
type Filter struct {
	Field string
	Value any
}

// Store is the document-store boundary. All writes are field-level merges;
// BatchCommit applies its operations atomically and rejects batches larger
// than BatchLimit.
type Store interface {
	Get(ctx context.Context, path string) (map[string]any, error)
	SetMerge(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	BatchCommit(ctx context.Context, ops []Operation) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	BatchLimit() int
}

// CollectionOf returns the collection a document path belongs to.
func CollectionOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// DocumentID returns the final path segment.
func DocumentID(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// Matches reports whether the document satisfies every filter.
func (d Document) Matches(filters []Filter) bool {
	for _, f := range filters {
		if d.Fields[f.Field] != f.Value {
			return false
		}
	}
	return true
}
