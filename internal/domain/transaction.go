package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// TransactionType is the kind of balance change recorded in the ledger.
type TransactionType string

// Supported transaction types.
const (
	Deposit    TransactionType = "DEPOSIT"
	Withdrawal TransactionType = "WITHDRAWAL"
	Transfer   TransactionType = "TRANSFER"
	Interest   TransactionType = "INTEREST"
)

// Valid reports whether t is one of the supported transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case Deposit, Withdrawal, Transfer, Interest:
		return true
	}

	return false
}

// Transaction is an immutable ledger record.
//
// DEPOSIT and INTEREST set To only, WITHDRAWAL sets From only, TRANSFER sets both.
type Transaction struct {
	ID     string          `json:"id"`
	Type   TransactionType `json:"type"`
	Time   time.Time       `json:"time"`
	From   string          `json:"from,omitempty"`
	To     string          `json:"to,omitempty"`
	Amount int64           `json:"amount"`
}

// NewTransaction validates and returns a transaction built from stored fields.
func NewTransaction(id string, t TransactionType, at time.Time, from, to string, amount int64) (Transaction, error) {
	tx := Transaction{
		ID:     id,
		Type:   t,
		Time:   at,
		From:   from,
		To:     to,
		Amount: amount,
	}

	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}

	return tx, nil
}

// Validate checks the rules every ledger record must hold.
func (t Transaction) Validate() error {
	if t.ID == "" || !t.Type.Valid() || t.Time.IsZero() || t.Amount <= 0 {
		return errorspkg.ErrInvalidArgument
	}

	if strings.ContainsAny(t.ID+t.From+t.To, ReservedChars) {
		return errorspkg.ErrInvalidArgument
	}

	switch t.Type {
	case Deposit, Interest:
		if t.To == "" || t.From != "" {
			return errorspkg.ErrInvalidArgument
		}
	case Withdrawal:
		if t.From == "" || t.To != "" {
			return errorspkg.ErrInvalidArgument
		}
	case Transfer:
		if t.From == "" || t.To == "" {
			return errorspkg.ErrInvalidArgument
		}
	}

	return nil
}

// Involves reports whether username is the source or the destination of t.
func (t Transaction) Involves(username string) bool {
	return t.From == username || t.To == username
}

func newTransaction(t TransactionType, from, to string, amount int64) Transaction {
	return Transaction{
		ID:     uuid.NewString(),
		Type:   t,
		Time:   time.Now().UTC(),
		From:   from,
		To:     to,
		Amount: amount,
	}
}

// NewDeposit returns a DEPOSIT record crediting user.
func NewDeposit(user string, amount int64) Transaction {
	return newTransaction(Deposit, "", user, amount)
}

// NewWithdrawal returns a WITHDRAWAL record debiting user.
func NewWithdrawal(user string, amount int64) Transaction {
	return newTransaction(Withdrawal, user, "", amount)
}

// NewTransfer returns a TRANSFER record between two users.
func NewTransfer(from, to string, amount int64) Transaction {
	return newTransaction(Transfer, from, to, amount)
}

// NewInterest returns an INTEREST record crediting user.
func NewInterest(user string, amount int64) Transaction {
	return newTransaction(Interest, "", user, amount)
}
