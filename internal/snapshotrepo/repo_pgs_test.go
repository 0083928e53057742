package snapshotrepo

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

func TestRepoPGS(t *testing.T) {
	db := dbpkg.SetupTestDB(t)
	repo := NewRepoPGS(db)
	ctx := context.Background()

	require.NoError(t, repo.Migrate(ctx))

	owner := randompkg.Owner()
	other := randompkg.Owner() + "x"

	records := []domain.AccountRecord{
		{Username: owner, Secret: randompkg.Secret(), Balance: randompkg.Amount(1000)},
		{Username: other, Secret: randompkg.Secret(), Balance: 0},
	}

	t.Run("accounts", func(t *testing.T) {
		require.NoError(t, repo.SaveAccounts(ctx, records))

		got, err := repo.LoadAccounts(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, records, got)

		require.NoError(t, repo.SaveAccounts(ctx, records[:1]))

		got, err = repo.LoadAccounts(ctx)
		require.NoError(t, err)
		require.Equal(t, records[:1], got)
	})

	t.Run("negative balance rejected", func(t *testing.T) {
		bad := []domain.AccountRecord{{Username: owner, Secret: "pwd", Balance: -1}}

		err := repo.SaveAccounts(ctx, bad)
		require.ErrorIs(t, err, errorspkg.ErrInvalidArgument)

		got, err := repo.LoadAccounts(ctx)
		require.NoError(t, err)
		require.Equal(t, records[:1], got)
	})

	t.Run("transactions keep order", func(t *testing.T) {
		at := time.Date(2024, 3, 1, 10, 30, 0, 123456000, time.UTC)
		txs := []domain.Transaction{
			{ID: randompkg.String(16), Type: domain.Transfer, Time: at, From: owner, To: other, Amount: 10},
			{ID: randompkg.String(16), Type: domain.Deposit, Time: at.Add(-time.Hour), To: owner, Amount: 50},
			{ID: randompkg.String(16), Type: domain.Withdrawal, Time: at, From: owner, Amount: 5},
		}

		require.NoError(t, repo.SaveTransactions(ctx, txs))

		got, err := repo.LoadTransactions(ctx)
		require.NoError(t, err)

		if diff := cmp.Diff(txs, got); diff != "" {
			t.Errorf("LoadTransactions() mismatch (-want +got):\n%s", diff)
		}
	})
}
