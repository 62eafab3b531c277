// Package provider defines the boundary to the external financial-data
// source. The engine treats accounts and transactions as opaque snapshots:
// fetching may fail transiently (a sync failure, retried by the periodic
// timer) or return empty (valid, not an error).
package provider

import (
	"context"

	"ledgersync/internal/core"
)

type (
	// AccountFetcher returns the current account snapshot for the linked user.
	AccountFetcher interface {
		FetchAccounts(ctx context.Context) ([]core.Account, error)
	}

	// TransactionFetcher returns the current transaction snapshot.
	TransactionFetcher interface {
		FetchTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// Provider is the full financial-data provider surface.
	Provider interface {
		AccountFetcher
		TransactionFetcher
	}
)
