//go:build integration

package accountrepo

import (
	"context"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const configDir = "../../configs"

func setupRepo(t *testing.T) *RepoPGS {
	t.Helper()

	config := integrationtest.LoadConfig(t, configDir)
	tx := integrationtest.SetupTX(t, config.DBDriver, config.DBSource)
	integrationtest.ApplySchema(t, tx, configDir+"/db/schema.sql")

	return NewRepoPGS(tx)
}

func createRandomAccount(t *testing.T, r *RepoPGS, owner string) domain.Account {
	t.Helper()

	arg := domain.CreateAccountParams{
		Owner:     owner,
		Balance:   randompkg.MoneyAmountBetween(0, 1000),
		Status:    domain.StatusActive,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	got, err := r.Create(context.Background(), arg)
	require.NoError(t, err)
	require.NotZero(t, got.ID)
	require.Equal(t, arg.Owner, got.Owner)
	require.True(t, arg.Balance.Equal(got.Balance))
	require.Equal(t, arg.Status, got.Status)
	require.WithinDuration(t, arg.CreatedAt, got.CreatedAt, time.Millisecond)

	return got
}

var compareDecimal = cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) })

func TestCreate(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	createRandomAccount(t, r, randompkg.Owner())

	testCases := []struct {
		name    string
		arg     domain.CreateAccountParams
		wantErr error
	}{
		{
			name:    "NegativeBalance",
			arg:     domain.CreateAccountParams{Owner: randompkg.Owner(), Balance: decimal.NewFromInt(-1), Status: domain.StatusActive},
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name:    "UnknownStatus",
			arg:     domain.CreateAccountParams{Owner: randompkg.Owner(), Balance: decimal.Zero, Status: "dormant"},
			wantErr: domain.ErrInvalidStatus,
		},
		{
			name:    "EmptyOwner",
			arg:     domain.CreateAccountParams{Balance: decimal.Zero, Status: domain.StatusActive},
			wantErr: domain.ErrInvalidOwner,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// A failed statement aborts the transaction, so each case gets its own.
			r := setupRepo(t)

			_, err := r.Create(ctx, tc.arg)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestGet(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	want := createRandomAccount(t, r, randompkg.Owner())

	got, err := r.Get(ctx, want.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got, compareDecimal, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	got, err = r.GetForUpdate(ctx, want.ID)
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)

	_, err = r.Get(ctx, want.ID+1000)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestUpdate(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	a := createRandomAccount(t, r, randompkg.Owner())

	balance := decimal.RequireFromString("4321.09")

	got, err := r.UpdateBalance(ctx, a.ID, balance)
	require.NoError(t, err)
	require.True(t, balance.Equal(got.Balance))

	got, err = r.UpdateStatus(ctx, a.ID, domain.StatusFrozen)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFrozen, got.Status)
	require.True(t, balance.Equal(got.Balance))

	_, err = r.UpdateStatus(ctx, a.ID+1000, domain.StatusFrozen)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	t.Run("NegativeBalance", func(t *testing.T) {
		r := setupRepo(t)
		a := createRandomAccount(t, r, randompkg.Owner())

		_, err := r.UpdateBalance(ctx, a.ID, decimal.NewFromInt(-1))
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})
}

func TestList(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	owner := randompkg.Owner()

	for i := 0; i < 5; i++ {
		createRandomAccount(t, r, owner)
	}

	createRandomAccount(t, r, randompkg.Owner())

	got, err := r.List(ctx, owner, 3, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for _, a := range got {
		require.Equal(t, owner, a.Owner)
	}
}
