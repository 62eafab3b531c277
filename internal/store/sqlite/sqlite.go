// Package sqlite persists documents in a single SQLite table, one row per
// path with the fields serialized as JSON. It is the durable adapter behind
// the store.Store port.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"ledgersync/internal/core"
	"ledgersync/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db    *sql.DB
	limit int
}

func New(dbPath string) (*Store, error) {
	return NewWithLimit(dbPath, store.DefaultBatchLimit)
}

func NewWithLimit(dbPath string, limit int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if limit <= 0 {
		limit = store.DefaultBatchLimit
	}
	return &Store{db: db, limit: limit}, nil
}

var _ store.Store = (*Store)(nil)

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", path, err)
	}
	return decodeFields(raw)
}

func (s *Store) SetMerge(ctx context.Context, path string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", core.ErrStoreWrite, err)
	}
	defer tx.Rollback()

	if err := mergeInTx(ctx, tx, path, fields); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", core.ErrStoreWrite, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("%w: delete %s: %v", core.ErrStoreWrite, path, err)
	}
	return nil
}

// BatchCommit applies the operations in one transaction: either every
// operation lands or none do.
func (s *Store) BatchCommit(ctx context.Context, ops []store.Operation) error {
	if len(ops) > s.limit {
		return fmt.Errorf("%w: batch of %d exceeds limit %d", core.ErrStoreWrite, len(ops), s.limit)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin batch: %v", core.ErrStoreWrite, err)
	}
	defer tx.Rollback()

	for i, op := range ops {
		switch op.Kind {
		case store.OpSetMerge:
			if err := mergeInTx(ctx, tx, op.Path, op.Fields); err != nil {
				return fmt.Errorf("batch op %d: %w", i, err)
			}
		case store.OpDelete:
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, op.Path); err != nil {
				return fmt.Errorf("%w: batch op %d delete %s: %v", core.ErrStoreWrite, i, op.Path, err)
			}
		default:
			return fmt.Errorf("%w: batch op %d: unknown kind %d", core.ErrStoreWrite, i, op.Kind)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit batch: %v", core.ErrStoreWrite, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, fields FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		doc := store.Document{Path: path, Fields: fields}
		if doc.Matches(filters) {
			out = append(out, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) BatchLimit() int {
	return s.limit
}

func mergeInTx(ctx context.Context, tx *sql.Tx, path string, fields map[string]any) error {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = ?`, path).Scan(&raw)
	merged := make(map[string]any)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// new document
	case err != nil:
		return fmt.Errorf("%w: read %s before merge: %v", core.ErrStoreWrite, path, err)
	default:
		existing, decodeErr := decodeFields(raw)
		if decodeErr != nil {
			return decodeErr
		}
		merged = existing
	}

	for k, v := range fields {
		merged[k] = v
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", core.ErrStoreWrite, path, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (path, collection, fields, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			fields = excluded.fields,
			updated_at = CURRENT_TIMESTAMP`,
		path, store.CollectionOf(path), string(encoded))
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", core.ErrStoreWrite, path, err)
	}
	return nil
}

func decodeFields(raw string) (map[string]any, error) {
	fields := make(map[string]any)
	if raw == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	return fields, nil
}
