package inmemdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/user"
	inmemdb "github.com/trezcool/bursary/storage/database/inmem"
	testutil "github.com/trezcool/bursary/tests"
)

func TestDB_WithinTx(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)
	repo := inmemdb.NewLedgerRepository(db)

	usr, err := users.CreateUser(ctx, user.User{Username: "jdoe", Email: "jdoe@test.edu", IsActive: true})
	require.NoError(t, err)
	charge := func(amount string) ledger.Entry {
		return ledger.NewEntry(usr.ID, ledger.KindFee, testutil.Dec(amount), "", "")
	}
	errBoom := errors.New("boom")

	tests := []struct {
		name        string
		fn          func(ctx context.Context) error
		wantErr     error
		wantPanic   bool
		wantBalance string
	}{
		{
			name: "failure rolls back",
			fn: func(ctx context.Context) error {
				require.NoError(t, repo.AppendEntries(ctx, charge("100")))
				return errBoom
			},
			wantErr:     errBoom,
			wantBalance: "0",
		},
		{
			name: "panic rolls back",
			fn: func(ctx context.Context) error {
				require.NoError(t, repo.AppendEntries(ctx, charge("100")))
				panic("lol")
			},
			wantPanic:   true,
			wantBalance: "0",
		},
		{
			name: "nested units of work share the outer one",
			fn: func(ctx context.Context) error {
				require.NoError(t, repo.LockAccount(ctx, usr.ID))
				if err := db.WithinTx(ctx, func(ctx context.Context) error {
					return repo.AppendEntries(ctx, charge("100"))
				}); err != nil {
					return err
				}
				return repo.AppendEntries(ctx, charge("50.25"))
			},
			wantBalance: "150.25",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func() { err = db.WithinTx(ctx, tt.fn) }
			if tt.wantPanic {
				assert.Panics(t, run)
			} else {
				run()
				assert.Equal(t, tt.wantErr, err)
			}

			balance, err := repo.Balance(ctx, usr.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, balance.String())
		})
	}
}

func TestLedgerRepository_LockAccount(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	repo := inmemdb.NewLedgerRepository(db)

	err := db.WithinTx(ctx, func(ctx context.Context) error {
		return repo.LockAccount(ctx, "unknown")
	})
	assert.Equal(t, ledger.ErrAccountNotFound, err)
}

func TestDB_Truncate(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)

	_, err := users.CreateUser(ctx, user.User{Username: "jdoe", Email: "jdoe@test.edu"})
	require.NoError(t, err)
	db.Truncate()

	found, err := users.QueryUsers(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}
