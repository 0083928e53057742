package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

func TestTransactionFactories(t *testing.T) {
	t.Parallel()

	ignoreID := cmpopts.IgnoreFields(Transaction{}, "ID")
	approxTime := cmpopts.EquateApproxTime(time.Second)
	now := time.Now()

	testCases := []struct {
		name string
		got  Transaction
		want Transaction
	}{
		{
			name: "Deposit",
			got:  NewDeposit("alice", 10),
			want: Transaction{Type: Deposit, Time: now, To: "alice", Amount: 10},
		},
		{
			name: "Withdrawal",
			got:  NewWithdrawal("alice", 10),
			want: Transaction{Type: Withdrawal, Time: now, From: "alice", Amount: 10},
		},
		{
			name: "Transfer",
			got:  NewTransfer("alice", "bob", 10),
			want: Transaction{Type: Transfer, Time: now, From: "alice", To: "bob", Amount: 10},
		},
		{
			name: "Interest",
			got:  NewInterest("bob", 10),
			want: Transaction{Type: Interest, Time: now, To: "bob", Amount: 10},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tc.want, tc.got, ignoreID, approxTime); diff != "" {
				t.Errorf("transaction mismatch (-want +got):\n%s", diff)
			}

			if tc.got.ID == "" {
				t.Error("transaction ID is empty")
			}

			if err := tc.got.Validate(); err != nil {
				t.Errorf("Validate() returned error: %v", err)
			}
		})
	}
}

func TestTransactionIDsAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := NewDeposit("alice", 1).ID
		if seen[id] {
			t.Fatalf("duplicate transaction id %q", id)
		}

		seen[id] = true
	}
}

func TestNewTransaction(t *testing.T) {
	t.Parallel()

	now := time.Now()

	testCases := []struct {
		name    string
		id      string
		typ     TransactionType
		at      time.Time
		from    string
		to      string
		amount  int64
		wantErr error
	}{
		{name: "OK", id: "1", typ: Transfer, at: now, from: "a", to: "b", amount: 1},
		{name: "EmptyID", id: "", typ: Transfer, at: now, from: "a", to: "b", amount: 1, wantErr: errorspkg.ErrInvalidArgument},
		{name: "UnknownType", id: "1", typ: "REFUND", at: now, to: "b", amount: 1, wantErr: errorspkg.ErrInvalidArgument},
		{name: "ZeroTime", id: "1", typ: Deposit, to: "b", amount: 1, wantErr: errorspkg.ErrInvalidArgument},
		{name: "ZeroAmount", id: "1", typ: Deposit, at: now, to: "b", amount: 0, wantErr: errorspkg.ErrInvalidArgument},
		{name: "NegativeAmount", id: "1", typ: Deposit, at: now, to: "b", amount: -5, wantErr: errorspkg.ErrInvalidArgument},
		{name: "DepositWithSource", id: "1", typ: Deposit, at: now, from: "a", to: "b", amount: 1, wantErr: errorspkg.ErrInvalidArgument},
		{name: "WithdrawalWithoutSource", id: "1", typ: Withdrawal, at: now, amount: 1, wantErr: errorspkg.ErrInvalidArgument},
		{name: "TransferWithoutDestination", id: "1", typ: Transfer, at: now, from: "a", amount: 1, wantErr: errorspkg.ErrInvalidArgument},
		{name: "SeparatorInID", id: "1;2", typ: Deposit, at: now, to: "b", amount: 1, wantErr: errorspkg.ErrInvalidArgument},
		{name: "SeparatorInUser", id: "1", typ: Deposit, at: now, to: "b;c", amount: 1, wantErr: errorspkg.ErrInvalidArgument},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewTransaction(tc.id, tc.typ, tc.at, tc.from, tc.to, tc.amount)
			if err != tc.wantErr {
				t.Fatalf("NewTransaction() returned error %v, want %v", err, tc.wantErr)
			}

			if err == nil && got.ID != tc.id {
				t.Errorf("got.ID = %q, want %q", got.ID, tc.id)
			}
		})
	}
}

func TestInvolves(t *testing.T) {
	t.Parallel()

	tx := NewTransfer("alice", "bob", 5)

	if !tx.Involves("alice") || !tx.Involves("bob") {
		t.Error("transfer must involve both participants")
	}

	if tx.Involves("carol") {
		t.Error("transfer must not involve carol")
	}
}
