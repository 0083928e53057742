package ledgerrepo

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

func TestAppend(t *testing.T) {
	t.Parallel()

	r := NewRepoMem()

	if err := r.Append(domain.NewDeposit("alice", 10)); err != nil {
		t.Fatalf("Append() returned error: %v", err)
	}

	if err := r.Append(domain.Transaction{}); err != errorspkg.ErrInvalidArgument {
		t.Errorf("Append(zero) returned %v, want %v", err, errorspkg.ErrInvalidArgument)
	}

	bad := domain.NewDeposit("alice", 10)
	bad.Amount = 0

	if err := r.Append(bad); err != errorspkg.ErrInvalidArgument {
		t.Errorf("Append(zero amount) returned %v, want %v", err, errorspkg.ErrInvalidArgument)
	}

	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestFindByUser(t *testing.T) {
	t.Parallel()

	r := NewRepoMem()

	txs := []domain.Transaction{
		domain.NewDeposit("alice", 10),
		domain.NewWithdrawal("bob", 20),
		domain.NewTransfer("bob", "alice", 30),
		domain.NewInterest("carol", 40),
		domain.NewTransfer("alice", "carol", 50),
	}

	for _, tx := range txs {
		if err := r.Append(tx); err != nil {
			t.Fatalf("Append() returned error: %v", err)
		}
	}

	testCases := []struct {
		name     string
		username string
		want     []domain.Transaction
	}{
		{name: "Alice", username: "alice", want: []domain.Transaction{txs[0], txs[2], txs[4]}},
		{name: "Bob", username: "bob", want: []domain.Transaction{txs[1], txs[2]}},
		{name: "Carol", username: "carol", want: []domain.Transaction{txs[3], txs[4]}},
		{name: "Unknown", username: "dave", want: []domain.Transaction{}},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tc.want, r.FindByUser(tc.username)); diff != "" {
				t.Errorf("FindByUser(%q) mismatch (-want +got):\n%s", tc.username, diff)
			}
		})
	}
}

func TestAllIsSnapshot(t *testing.T) {
	t.Parallel()

	r := NewRepoMem()
	first := domain.NewDeposit("alice", 1)

	if err := r.Append(first); err != nil {
		t.Fatalf("Append() returned error: %v", err)
	}

	all := r.All()
	all[0].Amount = 999

	if err := r.Append(domain.NewDeposit("alice", 2)); err != nil {
		t.Fatalf("Append() returned error: %v", err)
	}

	if len(all) != 1 {
		t.Errorf("len(snapshot) = %d, want 1", len(all))
	}

	got := r.All()
	if len(got) != 2 {
		t.Fatalf("len(All()) = %d, want 2", len(got))
	}

	if diff := cmp.Diff(first, got[0]); diff != "" {
		t.Errorf("stored transaction changed (-want +got):\n%s", diff)
	}
}

func TestAppendConcurrent(t *testing.T) {
	t.Parallel()

	r := NewRepoMem()

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 50; j++ {
				if err := r.Append(domain.NewDeposit("alice", 1)); err != nil {
					t.Errorf("Append() returned error: %v", err)
				}
			}
		}()
	}

	wg.Wait()

	if got := r.Len(); got != 1000 {
		t.Errorf("Len() = %d, want 1000", got)
	}
}
