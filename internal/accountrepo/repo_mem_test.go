package accountrepo

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

func TestNewRepoIsEmpty(t *testing.T) {
	t.Parallel()

	r := NewRepoMem()

	require.False(t, r.Exists("alice"))

	_, ok := r.Get("alice")
	require.False(t, ok)
	require.Empty(t, r.List())
	require.Zero(t, r.Len())
}

func TestCreate(t *testing.T) {
	t.Parallel()

	username := randompkg.Owner()

	testCases := []struct {
		name        string
		username    string
		secret      string
		setup       func(r *RepoMem)
		wantCreated bool
		wantErr     error
	}{
		{
			name:        "OK",
			username:    username,
			secret:      "pwd",
			setup:       func(r *RepoMem) {},
			wantCreated: true,
		},
		{
			name:     "Duplicate",
			username: username,
			secret:   "other",
			setup: func(r *RepoMem) {
				_, _, err := r.Create(username, "pwd")
				require.NoError(t, err)
			},
			wantCreated: false,
		},
		{
			name:     "BlankUsername",
			username: " ",
			secret:   "pwd",
			setup:    func(r *RepoMem) {},
			wantErr:  errorspkg.ErrInvalidArgument,
		},
		{
			name:     "SeparatorInUsername",
			username: "al;ice",
			secret:   "pwd",
			setup:    func(r *RepoMem) {},
			wantErr:  errorspkg.ErrInvalidArgument,
		},
		{
			name:     "NewlineInSecret",
			username: username,
			secret:   "p\nwd",
			setup:    func(r *RepoMem) {},
			wantErr:  errorspkg.ErrInvalidArgument,
		},
		{
			name:     "EmptySecret",
			username: username,
			secret:   "",
			setup:    func(r *RepoMem) {},
			wantErr:  errorspkg.ErrInvalidArgument,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := NewRepoMem()
			tc.setup(r)

			acc, created, err := r.Create(tc.username, tc.secret)
			require.ErrorIs(t, err, tc.wantErr)
			require.Equal(t, tc.wantCreated, created)

			if !tc.wantCreated {
				require.Nil(t, acc)
				return
			}

			require.EqualValues(t, domain.OpeningBalance, acc.Balance())

			got, ok := r.Get(tc.username)
			require.True(t, ok)
			require.Same(t, acc, got)
		})
	}
}

func TestCreateDuplicateKeepsOriginal(t *testing.T) {
	t.Parallel()

	r := NewRepoMem()

	first, created, err := r.Create("alice", "pwd1")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := r.Create("alice", "pwd2")
	require.NoError(t, err)
	require.False(t, created)
	require.Nil(t, second)

	got, _ := r.Get("alice")
	require.Same(t, first, got)
	require.True(t, got.CheckCredential("pwd1"))
}

func TestCreateConcurrentSameUsername(t *testing.T) {
	t.Parallel()

	r := NewRepoMem()

	var (
		wg      sync.WaitGroup
		created int32
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, ok, _ := r.Create("alice", "pwd"); ok {
				atomic.AddInt32(&created, 1)
			}
		}()
	}

	wg.Wait()

	require.EqualValues(t, 1, created)
	require.Equal(t, 1, r.Len())
}

func TestInsert(t *testing.T) {
	t.Parallel()

	r := NewRepoMem()

	acc, err := domain.NewAccount("alice", "pwd", 42)
	require.NoError(t, err)

	require.NoError(t, r.Insert(acc))
	require.ErrorIs(t, r.Insert(acc), domain.ErrUsernameAlreadyExists)
	require.ErrorIs(t, r.Insert(nil), errorspkg.ErrInvalidArgument)

	got, ok := r.Get("alice")
	require.True(t, ok)
	require.EqualValues(t, 42, got.Balance())
}

func TestListIsSnapshot(t *testing.T) {
	t.Parallel()

	r := NewRepoMem()

	for _, name := range []string{"carol", "alice", "bob"} {
		_, _, err := r.Create(name, "pwd")
		require.NoError(t, err)
	}

	list := r.List()
	require.Len(t, list, 3)

	names := make([]string, 0, len(list))
	for _, acc := range list {
		names = append(names, acc.Username())
	}

	require.Equal(t, []string{"alice", "bob", "carol"}, names)

	for i := 0; i < 5; i++ {
		_, _, err := r.Create(fmt.Sprintf("user%d", i), "pwd")
		require.NoError(t, err)
	}

	require.Len(t, list, 3)
	require.Len(t, r.List(), 8)
}
