package domain

import (
	"strings"
	"sync"

	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// OpeningBalance is the balance, in minor units, of every newly created account.
const OpeningBalance int64 = 1000

// Account holds the balance and credential of a single user.
//
// The credential and the balance are guarded by one lock, so every operation on a
// single account is linearizable. The lock never leaves this package.
type Account struct {
	username string

	mu      sync.Mutex
	secret  string
	balance int64
}

// AccountRecord is a point-in-time copy of an account used for persistence.
type AccountRecord struct {
	Username string `json:"username"`
	Secret   string `json:"-"`
	Balance  int64  `json:"balance"`
}

// ReservedChars may not appear in usernames or secrets; snapshots use them as
// field and record separators.
const ReservedChars = ";\r\n"

// ValidField reports whether s can be stored as a username or secret.
func ValidField(s string) bool {
	return strings.TrimSpace(s) != "" && !strings.ContainsAny(s, ReservedChars)
}

// NewAccount returns an account with the given initial balance.
func NewAccount(username, secret string, balance int64) (*Account, error) {
	if !ValidField(username) || !ValidField(secret) || balance < 0 {
		return nil, errorspkg.ErrInvalidArgument
	}

	return &Account{
		username: username,
		secret:   secret,
		balance:  balance,
	}, nil
}

// Username returns the immutable account key.
func (a *Account) Username() string {
	return a.username
}

// Balance returns a snapshot of the current balance.
func (a *Account) Balance() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.balance
}

// Deposit adds a positive amount and returns the new balance.
func (a *Account) Deposit(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errorspkg.ErrInvalidArgument
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.balance += amount

	return a.balance, nil
}

// Withdraw removes a positive amount if the balance covers it.
//
// Insufficient funds is reported with ok=false and leaves the balance unchanged.
func (a *Account) Withdraw(amount int64) (balance int64, ok bool, err error) {
	if amount <= 0 {
		return 0, false, errorspkg.ErrInvalidArgument
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.balance < amount {
		return a.balance, false, nil
	}

	a.balance -= amount

	return a.balance, true, nil
}

// CheckCredential reports whether candidate equals the stored secret.
func (a *Account) CheckCredential(candidate string) bool {
	if candidate == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.secret == candidate
}

// ChangeCredential replaces the stored secret.
func (a *Account) ChangeCredential(secret string) error {
	if !ValidField(secret) {
		return errorspkg.ErrInvalidArgument
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.secret = secret

	return nil
}

// Accrue deposits the amount computed from the balance seen under the lock.
//
// A computed amount <= 0 leaves the account untouched and returns amount 0.
func (a *Account) Accrue(compute func(balance int64) int64) (amount, balance int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.balance <= 0 {
		return 0, a.balance
	}

	amount = compute(a.balance)
	if amount <= 0 {
		return 0, a.balance
	}

	a.balance += amount

	return amount, a.balance
}

// Record returns a consistent copy of the account for persistence.
func (a *Account) Record() AccountRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	return AccountRecord{
		Username: a.username,
		Secret:   a.secret,
		Balance:  a.balance,
	}
}

// Move transfers amount from one account to another while holding both locks.
//
// Locks are always taken in username order, whatever the direction of the move,
// so concurrent moves between any pair of accounts cannot deadlock. Moving from an
// account to itself is rejected with ErrInvalidArgument. When the source cannot
// cover the amount ok is false and neither balance changes.
func Move(from, to *Account, amount int64) (fromBalance, toBalance int64, ok bool, err error) {
	if amount <= 0 || from == nil || to == nil || from.username == to.username {
		return 0, 0, false, errorspkg.ErrInvalidArgument
	}

	unlock := lockPair(from, to)
	defer unlock()

	if from.balance < amount {
		return from.balance, to.balance, false, nil
	}

	from.balance -= amount
	to.balance += amount

	return from.balance, to.balance, true, nil
}

// lockPair acquires the locks of two distinct accounts by ascending username.
func lockPair(a, b *Account) (unlock func()) {
	first, second := a, b
	if b.username < a.username {
		first, second = b, a
	}

	first.mu.Lock()
	second.mu.Lock()

	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
