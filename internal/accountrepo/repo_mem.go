// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"sort"
	"sync"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoMem keeps every account in memory keyed by username.
//
// Entries are never removed.
type RepoMem struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewRepoMem returns an empty account RepoMem.
func NewRepoMem() *RepoMem {
	return &RepoMem{
		accounts: make(map[string]*domain.Account),
	}
}

// Create inserts a new account with the opening balance.
//
// created is false when the username is already taken; the existing account is not
// touched. Blank input or input holding domain.ReservedChars is rejected with
// ErrInvalidArgument.
func (r *RepoMem) Create(username, secret string) (acc *domain.Account, created bool, err error) {
	if !domain.ValidField(username) || !domain.ValidField(secret) {
		return nil, false, errorspkg.ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[username]; ok {
		return nil, false, nil
	}

	acc, err = domain.NewAccount(username, secret, domain.OpeningBalance)
	if err != nil {
		return nil, false, err
	}

	r.accounts[username] = acc

	return acc, true, nil
}

// Insert adds an already built account, used when restoring a snapshot.
func (r *RepoMem) Insert(acc *domain.Account) error {
	if acc == nil {
		return errorspkg.ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[acc.Username()]; ok {
		return domain.ErrUsernameAlreadyExists
	}

	r.accounts[acc.Username()] = acc

	return nil
}

// Get returns the account for the given username.
func (r *RepoMem) Get(username string) (*domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[username]

	return acc, ok
}

// Exists reports whether the username is registered.
func (r *RepoMem) Exists(username string) bool {
	_, ok := r.Get(username)
	return ok
}

// List returns a snapshot of the registered accounts ordered by username.
//
// Accounts created after the call are not part of the returned slice.
func (r *RepoMem) List() []*domain.Account {
	r.mu.RLock()
	items := make([]*domain.Account, 0, len(r.accounts))

	for _, acc := range r.accounts {
		items = append(items, acc)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].Username() < items[j].Username()
	})

	return items
}

// Len returns the number of registered accounts.
func (r *RepoMem) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.accounts)
}
