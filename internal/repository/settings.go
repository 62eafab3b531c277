package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgersync/internal/core"
)

// Per-user persisted configuration lives in two small settings documents:
// sync state (last sync time, migration flag) and the category-mapping
// override table, which stores one field per raw label so a single override
// is a single field merge.

func syncSettingsPath(userID string) string {
	return settingsCollection(userID) + "/sync"
}

func mappingOverridesPath(userID string) string {
	return settingsCollection(userID) + "/category_mappings"
}

// LastSyncTime returns the completion time of the last successful sync, or
// the zero time when no sync has completed yet.
func (r *Repository) LastSyncTime(ctx context.Context, userID string) (time.Time, error) {
	if err := requireUser(userID); err != nil {
		return time.Time{}, err
	}
	fields, err := r.store.Get(ctx, syncSettingsPath(userID))
	if errors.Is(err, core.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get sync settings: %w", err)
	}
	return fieldTime(fields, "last_sync_time")
}

func (r *Repository) SetLastSyncTime(ctx context.Context, userID string, t time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	fields := map[string]any{"last_sync_time": t.UTC().Format(time.RFC3339)}
	if err := r.store.SetMerge(ctx, syncSettingsPath(userID), fields); err != nil {
		return fmt.Errorf("set last sync time: %w", err)
	}
	return nil
}

// InitialMigrationDone reports whether the one-time data migration has run
// for this user.
func (r *Repository) InitialMigrationDone(ctx context.Context, userID string) (bool, error) {
	if err := requireUser(userID); err != nil {
		return false, err
	}
	fields, err := r.store.Get(ctx, syncSettingsPath(userID))
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get sync settings: %w", err)
	}
	return fieldBool(fields, "initial_migration_done"), nil
}

func (r *Repository) SetInitialMigrationDone(ctx context.Context, userID string, done bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	fields := map[string]any{"initial_migration_done": done}
	if err := r.store.SetMerge(ctx, syncSettingsPath(userID), fields); err != nil {
		return fmt.Errorf("set initial migration flag: %w", err)
	}
	return nil
}

// MappingOverrides loads the user's raw-label overrides. An absent document
// is an empty table.
func (r *Repository) MappingOverrides(ctx context.Context, userID string) (map[string]string, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	fields, err := r.store.Get(ctx, mappingOverridesPath(userID))
	if errors.Is(err, core.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping overrides: %w", err)
	}
	overrides := make(map[string]string, len(fields))
	for raw, v := range fields {
		if canonical, ok := v.(string); ok {
			overrides[raw] = canonical
		}
	}
	return overrides, nil
}

// SaveMappingOverride persists one raw-label override as a single-field merge.
func (r *Repository) SaveMappingOverride(ctx context.Context, userID, raw, canonical string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if raw == "" || canonical == "" {
		return fmt.Errorf("%w: mapping labels must be non-empty", core.ErrValidation)
	}
	if err := r.store.SetMerge(ctx, mappingOverridesPath(userID), map[string]any{raw: canonical}); err != nil {
		return fmt.Errorf("save mapping override: %w", err)
	}
	return nil
}
