// Package memory provides an in-memory document store used by tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

type Store struct {
	mu    sync.Mutex
	docs  map[string]map[string]any
	limit int
}

func New() *Store {
	return NewWithLimit(store.DefaultBatchLimit)
}

// NewWithLimit builds a store with a custom batch cap, handy for exercising
// chunking with small inputs.
func NewWithLimit(limit int) *Store {
	if limit <= 0 {
		limit = store.DefaultBatchLimit
	}
	return &Store{
		docs:  make(map[string]map[string]any),
		limit: limit,
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Get(_ context.Context, path string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotFound, path)
	}
	return copyFields(doc), nil
}

func (s *Store) SetMerge(_ context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(path, fields)
	return nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
	return nil
}

func (s *Store) BatchCommit(_ context.Context, ops []store.Operation) error {
	if len(ops) > s.limit {
		return fmt.Errorf("%w: batch of %d exceeds limit %d", core.ErrStoreWrite, len(ops), s.limit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case store.OpSetMerge:
			s.mergeLocked(op.Path, op.Fields)
		case store.OpDelete:
			delete(s.docs, op.Path)
		default:
			return fmt.Errorf("%w: unknown operation kind %d", core.ErrStoreWrite, op.Kind)
		}
	}
	return nil
}

func (s *Store) Query(_ context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Document
	for path, fields := range s.docs {
		if store.CollectionOf(path) != collection {
			continue
		}
		doc := store.Document{Path: path, Fields: copyFields(fields)}
		if doc.Matches(filters) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) BatchLimit() int {
	return s.limit
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *Store) mergeLocked(path string, fields map[string]any) {
	doc, ok := s.docs[path]
	if !ok {
		doc = make(map[string]any, len(fields))
		s.docs[path] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
