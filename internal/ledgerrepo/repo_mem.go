// Package ledgerrepo manages the append-only transaction log.
package ledgerrepo

import (
	"sync"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// RepoMem is an in-memory append-only ledger.
//
// Existing entries are never mutated or removed; readers always get a copy.
type RepoMem struct {
	mu           sync.RWMutex
	transactions []domain.Transaction
}

// NewRepoMem returns an empty ledger.
func NewRepoMem() *RepoMem {
	return &RepoMem{}
}

// Append validates tx and adds it to the end of the ledger.
func (r *RepoMem) Append(tx domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.transactions = append(r.transactions, tx)
	r.mu.Unlock()

	return nil
}

// FindByUser returns, in insertion order, the transactions where username is the
// source or the destination.
func (r *RepoMem) FindByUser(username string) []domain.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []domain.Transaction{}

	for _, tx := range r.transactions {
		if tx.Involves(username) {
			items = append(items, tx)
		}
	}

	return items
}

// All returns a copy of the whole ledger in insertion order.
func (r *RepoMem) All() []domain.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.Transaction, len(r.transactions))
	copy(items, r.transactions)

	return items
}

// Len returns the number of recorded transactions.
func (r *RepoMem) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.transactions)
}
