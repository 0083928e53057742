package snapshotrepo

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoPGS stores snapshots in PostgreSQL. Every save replaces the previous snapshot
// within one transaction.
type RepoPGS struct {
	db *sql.DB
}

// NewRepoPGS returns snapshot RepoPGS.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// Kept in sync with configs/db/migration.
const schemaQuery = `
CREATE TABLE IF NOT EXISTS account_snapshots (
  username varchar PRIMARY KEY,
  secret varchar NOT NULL,
  balance bigint NOT NULL CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS ledger_entries (
  seq bigserial PRIMARY KEY,
  id varchar UNIQUE NOT NULL,
  type varchar NOT NULL,
  created_at timestamptz NOT NULL,
  from_user varchar NOT NULL DEFAULT '',
  to_user varchar NOT NULL DEFAULT '',
  amount bigint NOT NULL CHECK (amount > 0)
);
`

// Migrate creates the snapshot tables when they do not exist.
func (r *RepoPGS) Migrate(ctx context.Context) error {
	l := zerolog.Ctx(ctx)

	if _, err := r.db.ExecContext(ctx, schemaQuery); err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

// SaveAccounts replaces the stored accounts with records.
func (r *RepoPGS) SaveAccounts(ctx context.Context, records []domain.AccountRecord) error {
	l := zerolog.Ctx(ctx)

	err := dbpkg.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM account_snapshots`); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("account_snapshots", "username", "secret", "balance"))
		if err != nil {
			return err
		}

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, rec.Username, rec.Secret, rec.Balance); err != nil {
				_ = stmt.Close()
				return err
			}
		}

		if _, err := stmt.ExecContext(ctx); err != nil {
			_ = stmt.Close()
			return err
		}

		return stmt.Close()
	})

	return mapErr(l, err)
}

const listAccountsQuery = `
SELECT username, secret, balance
FROM account_snapshots
ORDER BY username
`

// LoadAccounts returns the stored accounts ordered by username.
func (r *RepoPGS) LoadAccounts(ctx context.Context) ([]domain.AccountRecord, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listAccountsQuery)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	var records []domain.AccountRecord

	for rows.Next() {
		var rec domain.AccountRecord

		if err := rows.Scan(&rec.Username, &rec.Secret, &rec.Balance); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return records, nil
}

// SaveTransactions replaces the stored ledger with txs, keeping their order.
func (r *RepoPGS) SaveTransactions(ctx context.Context, txs []domain.Transaction) error {
	l := zerolog.Ctx(ctx)

	err := dbpkg.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE ledger_entries RESTART IDENTITY`); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("ledger_entries",
			"id", "type", "created_at", "from_user", "to_user", "amount"))
		if err != nil {
			return err
		}

		for _, t := range txs {
			_, err := stmt.ExecContext(ctx, t.ID, string(t.Type), t.Time, t.From, t.To, t.Amount)
			if err != nil {
				_ = stmt.Close()
				return err
			}
		}

		if _, err := stmt.ExecContext(ctx); err != nil {
			_ = stmt.Close()
			return err
		}

		return stmt.Close()
	})

	return mapErr(l, err)
}

const listTransactionsQuery = `
SELECT id, type, created_at, from_user, to_user, amount
FROM ledger_entries
ORDER BY seq
`

// LoadTransactions returns the stored ledger in insertion order.
func (r *RepoPGS) LoadTransactions(ctx context.Context) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listTransactionsQuery)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	var txs []domain.Transaction

	for rows.Next() {
		var t domain.Transaction

		if err := rows.Scan(&t.ID, &t.Type, &t.Time, &t.From, &t.To, &t.Amount); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		t.Time = t.Time.UTC()
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return txs, nil
}

func mapErr(l *zerolog.Logger, err error) error {
	if err == nil {
		return nil
	}

	l.Error().Err(err).Send()

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Name() {
		case "check_violation", "unique_violation", "not_null_violation":
			return errorspkg.ErrInvalidArgument
		}
	}

	return errorspkg.ErrInternal
}
