package core

import "errors"

// Error taxonomy for the engine. Callers discriminate with errors.Is; most
// errors are wrapped with operation context on the way up.
var (
	// ErrNotAuthenticated means no current user could be resolved. The engine
	// fails closed: no I/O is attempted.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrProvider marks a failure of the external financial-data provider.
	ErrProvider = errors.New("provider error")

	// ErrStoreWrite marks a failed document-store commit. Batches already
	// committed stay committed; re-running is safe because writes are
	// idempotent merge-upserts.
	ErrStoreWrite = errors.New("store write error")

	// ErrValidation rejects a single operation without aborting a broader sync.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned for required-document reads that came up empty.
	// Empty query results are not errors.
	ErrNotFound = errors.New("not found")
)
