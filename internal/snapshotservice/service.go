// Package snapshotservice manages persistence of the in-memory accounts and ledger
// between process runs.
package snapshotservice

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
)

//go:generate mockgen -source service.go -destination service_mock.go -package snapshotservice

// Repo provides snapshot storage interface needed by the snapshot service.
type Repo interface {
	SaveAccounts(ctx context.Context, records []domain.AccountRecord) error
	LoadAccounts(ctx context.Context) ([]domain.AccountRecord, error)
	SaveTransactions(ctx context.Context, txs []domain.Transaction) error
	LoadTransactions(ctx context.Context) ([]domain.Transaction, error)
}

// Accounts provides account registry interface needed by the snapshot service.
type Accounts interface {
	List() []*domain.Account
	Insert(acc *domain.Account) error
}

// Ledger provides transaction log interface needed by the snapshot service.
type Ledger interface {
	All() []domain.Transaction
	Append(tx domain.Transaction) error
}

// Service facilitates snapshot service layer logic.
type Service struct {
	repo     Repo
	accounts Accounts
	ledger   Ledger
}

// New returns snapshot service struct to save and restore state.
func New(r Repo, a Accounts, l Ledger) *Service {
	return &Service{
		repo:     r,
		accounts: a,
		ledger:   l,
	}
}

// Stats counts what a Load restored and what it skipped.
type Stats struct {
	Accounts            int
	Transactions        int
	SkippedAccounts     int
	SkippedTransactions int
}

// Save writes every account and the whole ledger to the repository.
//
// Each account is copied under its own lock; the snapshot is not a global
// point-in-time view while operations are still running.
func (s *Service) Save(ctx context.Context) error {
	l := zerolog.Ctx(ctx)

	accounts := s.accounts.List()
	records := make([]domain.AccountRecord, 0, len(accounts))

	for _, acc := range accounts {
		records = append(records, acc.Record())
	}

	if err := s.repo.SaveAccounts(ctx, records); err != nil {
		l.Error().Err(err).Msg("saving accounts")
		return err
	}

	txs := s.ledger.All()

	if err := s.repo.SaveTransactions(ctx, txs); err != nil {
		l.Error().Err(err).Msg("saving transactions")
		return err
	}

	l.Info().Int("accounts", len(records)).Int("transactions", len(txs)).Msg("snapshot saved")

	return nil
}

// Load restores accounts and transactions from the repository.
//
// Records that fail validation or name an already registered account are skipped.
// Transactions are appended in stored order.
func (s *Service) Load(ctx context.Context) (Stats, error) {
	l := zerolog.Ctx(ctx)

	var stats Stats

	records, err := s.repo.LoadAccounts(ctx)
	if err != nil {
		l.Error().Err(err).Msg("loading accounts")
		return stats, err
	}

	for _, rec := range records {
		acc, err := domain.NewAccount(rec.Username, rec.Secret, rec.Balance)
		if err == nil {
			err = s.accounts.Insert(acc)
		}

		if err != nil {
			l.Warn().Err(err).Str("username", rec.Username).Msg("skipping account record")
			stats.SkippedAccounts++

			continue
		}

		stats.Accounts++
	}

	txs, err := s.repo.LoadTransactions(ctx)
	if err != nil {
		l.Error().Err(err).Msg("loading transactions")
		return stats, err
	}

	for _, t := range txs {
		tx, err := domain.NewTransaction(t.ID, t.Type, t.Time, t.From, t.To, t.Amount)
		if err == nil {
			err = s.ledger.Append(tx)
		}

		if err != nil {
			l.Warn().Err(err).Str("id", t.ID).Msg("skipping transaction record")
			stats.SkippedTransactions++

			continue
		}

		stats.Transactions++
	}

	l.Info().
		Int("accounts", stats.Accounts).
		Int("transactions", stats.Transactions).
		Int("skipped_accounts", stats.SkippedAccounts).
		Int("skipped_transactions", stats.SkippedTransactions).
		Msg("snapshot loaded")

	return stats, nil
}
