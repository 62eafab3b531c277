// Package fixture is an in-memory provider used by tests and local
// development. It serves fixed snapshots and can be told to fail, standing in
// for a provider outage.
package fixture

import (
	"context"
	"fmt"
	"sync"

	"ledgersync/internal/core"
	"ledgersync/internal/provider"
)

type Provider struct {
	mu           sync.Mutex
	accounts     []core.Account
	transactions []core.Transaction
	failWith     error
}

func New(accounts []core.Account, transactions []core.Transaction) *Provider {
	return &Provider{accounts: accounts, transactions: transactions}
}

var _ provider.Provider = (*Provider)(nil)

func (p *Provider) FetchAccounts(_ context.Context) ([]core.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProvider, p.failWith)
	}
	return append([]core.Account(nil), p.accounts...), nil
}

func (p *Provider) FetchTransactions(_ context.Context) ([]core.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProvider, p.failWith)
	}
	return append([]core.Transaction(nil), p.transactions...), nil
}

// SetSnapshots replaces the served data.
func (p *Provider) SetSnapshots(accounts []core.Account, transactions []core.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = accounts
	p.transactions = transactions
}

// FailWith makes subsequent fetches fail; nil restores normal behavior.
func (p *Provider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
}
