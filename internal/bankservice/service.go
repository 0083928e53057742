// Package bankservice manages business logic layer of the ledger: account
// operations, transfers, interest and balance notifications.
//
// Every mutating operation runs in the same fixed order: lock the account(s),
// mutate, unlock, append to the ledger, notify subscribers. The ledger is an audit
// trail, so a balance may be visible shortly before its record is appended.
package bankservice

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// AccountRepo provides account registry interface needed by the bank service.
type AccountRepo interface {
	Create(username, secret string) (*domain.Account, bool, error)
	Get(username string) (*domain.Account, bool)
	List() []*domain.Account
}

// Ledger provides transaction log interface needed by the bank service.
type Ledger interface {
	Append(tx domain.Transaction) error
	FindByUser(username string) []domain.Transaction
	All() []domain.Transaction
}

// Notifier provides subscriber fan-out needed by the bank service.
type Notifier interface {
	Subscribe(username string, l domain.BalanceListener)
	Unsubscribe(username string, l domain.BalanceListener)
	Notify(username string, balance int64, message string)
}

// Service facilitates bank service layer logic.
type Service struct {
	accounts AccountRepo
	ledger   Ledger
	notifier Notifier
}

// New returns bank service struct to manage account operations.
func New(ar AccountRepo, l Ledger, n Notifier) *Service {
	return &Service{
		accounts: ar,
		ledger:   l,
		notifier: n,
	}
}

// Login returns the account when the username exists and the secret matches.
func (s *Service) Login(ctx context.Context, username, secret string) (*domain.Account, bool) {
	l := zerolog.Ctx(ctx)

	acc, ok := s.accounts.Get(username)
	if !ok || !acc.CheckCredential(secret) {
		l.Info().Str("username", username).Msg("login rejected")
		return nil, false
	}

	return acc, true
}

// CreateAccount registers a new account with the opening balance.
//
// ok is false for blank input, input holding domain.ReservedChars, or a username
// that is already taken.
func (s *Service) CreateAccount(ctx context.Context, username, secret string) (*domain.Account, bool) {
	l := zerolog.Ctx(ctx)

	if !domain.ValidField(username) || !domain.ValidField(secret) {
		l.Info().Str("username", username).Msg("account fields rejected")
		return nil, false
	}

	acc, created, err := s.accounts.Create(username, secret)
	if err != nil {
		l.Info().Err(err).Str("username", username).Send()
		return nil, false
	}

	if !created {
		l.Info().Str("username", username).Msg("username already taken")
		return nil, false
	}

	l.Info().Str("username", username).Msg("account created")

	return acc, true
}

// AccountExists reports whether the username is registered.
func (s *Service) AccountExists(username string) bool {
	_, ok := s.accounts.Get(username)
	return ok
}

// Balance returns the current balance of username.
func (s *Service) Balance(ctx context.Context, username string) (int64, error) {
	acc, ok := s.accounts.Get(username)
	if !ok {
		return 0, domain.ErrUnknownUser
	}

	return acc.Balance(), nil
}

// ChangeCredential replaces the secret of username.
func (s *Service) ChangeCredential(ctx context.Context, username, secret string) error {
	acc, ok := s.accounts.Get(username)
	if !ok {
		return domain.ErrUnknownUser
	}

	return acc.ChangeCredential(secret)
}

// Deposit credits username and returns the new balance.
func (s *Service) Deposit(ctx context.Context, username string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errorspkg.ErrInvalidArgument
	}

	acc, ok := s.accounts.Get(username)
	if !ok {
		return 0, domain.ErrUnknownUser
	}

	balance, err := acc.Deposit(amount)
	if err != nil {
		return 0, err
	}

	s.record(ctx, domain.NewDeposit(username, amount))
	s.notifier.Notify(username, balance, fmt.Sprintf("deposit %d", amount))

	return balance, nil
}

// Withdraw debits username and returns the new balance.
//
// ErrInsufficientFunds leaves the balance and the ledger unchanged.
func (s *Service) Withdraw(ctx context.Context, username string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errorspkg.ErrInvalidArgument
	}

	acc, ok := s.accounts.Get(username)
	if !ok {
		return 0, domain.ErrUnknownUser
	}

	balance, ok, err := acc.Withdraw(amount)
	if err != nil {
		return 0, err
	}

	if !ok {
		return balance, domain.ErrInsufficientFunds
	}

	s.record(ctx, domain.NewWithdrawal(username, amount))
	s.notifier.Notify(username, balance, fmt.Sprintf("withdrawal %d", amount))

	return balance, nil
}

// Transfer moves amount between two accounts.
//
// It returns false, without error, when either account is unknown, when both
// names are the same, or when the source cannot cover the amount. In those cases
// neither balance nor the ledger change.
func (s *Service) Transfer(ctx context.Context, fromUser, toUser string, amount int64) (bool, error) {
	l := zerolog.Ctx(ctx)

	if amount <= 0 {
		return false, errorspkg.ErrInvalidArgument
	}

	if fromUser == toUser {
		return false, nil
	}

	from, ok := s.accounts.Get(fromUser)
	if !ok {
		return false, nil
	}

	to, ok := s.accounts.Get(toUser)
	if !ok {
		return false, nil
	}

	fromBalance, toBalance, ok, err := domain.Move(from, to, amount)
	if err != nil {
		return false, err
	}

	if !ok {
		l.Info().Str("from", fromUser).Str("to", toUser).Int64("amount", amount).Msg("transfer refused: insufficient funds")
		return false, nil
	}

	s.record(ctx, domain.NewTransfer(fromUser, toUser, amount))
	s.notifier.Notify(fromUser, fromBalance, fmt.Sprintf("transfer %d to %s", amount, toUser))
	s.notifier.Notify(toUser, toBalance, fmt.Sprintf("transfer %d from %s", amount, fromUser))

	return true, nil
}

// ApplyInterest credits every account with round-half-up(balance * rate).
//
// Accounts are visited from a snapshot taken at the start, so accounts created
// meanwhile are skipped and none is visited twice. Each account is credited from
// the balance it holds when visited. Accounts whose interest rounds to zero get
// neither a ledger entry nor a notification.
func (s *Service) ApplyInterest(ctx context.Context, rate float64) error {
	l := zerolog.Ctx(ctx)

	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return errorspkg.ErrInvalidArgument
	}

	r := decimal.NewFromFloat(rate)
	compute := func(balance int64) int64 {
		return interestFor(balance, r)
	}

	var credited int

	for _, acc := range s.accounts.List() {
		amount, balance := acc.Accrue(compute)
		if amount <= 0 {
			continue
		}

		credited++

		s.record(ctx, domain.NewInterest(acc.Username(), amount))
		s.notifier.Notify(acc.Username(), balance, fmt.Sprintf("interest %d", amount))
	}

	l.Info().Float64("rate", rate).Int("credited", credited).Msg("interest applied")

	return nil
}

// interestFor rounds half up; balances are never negative.
func interestFor(balance int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(balance).Mul(rate).Round(0).IntPart()
}

// Transactions returns the ledger entries involving username.
func (s *Service) Transactions(ctx context.Context, username string) []domain.Transaction {
	return s.ledger.FindByUser(username)
}

// AllTransactions returns the whole ledger.
func (s *Service) AllTransactions(ctx context.Context) []domain.Transaction {
	return s.ledger.All()
}

// Subscribe registers l for balance changes of username.
func (s *Service) Subscribe(username string, l domain.BalanceListener) {
	s.notifier.Subscribe(username, l)
}

// Unsubscribe removes l from username's subscribers.
func (s *Service) Unsubscribe(username string, l domain.BalanceListener) {
	s.notifier.Unsubscribe(username, l)
}

func (s *Service) record(ctx context.Context, tx domain.Transaction) {
	if err := s.ledger.Append(tx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Interface("transaction", tx).Msg("ledger append failed")
	}
}
