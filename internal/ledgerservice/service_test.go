package ledgerservice

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireBalance(t *testing.T, s *Service, id int32, want string) {
	t.Helper()

	got, err := s.BalanceOf(context.Background(), id)
	require.NoError(t, err)
	require.Truef(t, got.Equal(amount(want)), "account %d balance: got %s, want %s", id, got, want)
}

// seedAccount opens an active account and funds it with balance.
func seedAccount(t *testing.T, s *Service, balance string) domain.Account {
	t.Helper()

	ctx := context.Background()

	a, err := s.OpenAccount(ctx, randompkg.Owner())
	require.NoError(t, err)

	if b := amount(balance); b.IsPositive() {
		_, err = s.Deposit(ctx, a.ID, b)
		require.NoError(t, err)
	}

	a, err = s.GetAccount(ctx, a.ID)
	require.NoError(t, err)

	return a
}

func newMemService() (*Service, *ledgerrepo.RepoMem) {
	repo := ledgerrepo.NewRepoMem()
	return New(repo, nil), repo
}

func TestDepositWithdraw(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()
	a := seedAccount(t, s, "250.00")

	deposited := randompkg.MoneyAmountBetween(1, 1000)

	entry, err := s.Deposit(ctx, a.ID, deposited)
	require.NoError(t, err)
	require.Equal(t, domain.KindDeposit, entry.Kind)
	require.Nil(t, entry.FromAccountID)
	require.Equal(t, a.ID, *entry.ToAccountID)
	require.True(t, entry.Amount.Equal(deposited))

	entry, err = s.Withdraw(ctx, a.ID, deposited)
	require.NoError(t, err)
	require.Equal(t, domain.KindWithdrawal, entry.Kind)
	require.Equal(t, a.ID, *entry.FromAccountID)
	require.Nil(t, entry.ToAccountID)

	requireBalance(t, s, a.ID, "250.00")

	n, err := s.TransactionCount(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestOperationErrors(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		run     func(s *Service, a, b domain.Account) (domain.LedgerEntry, error)
		wantErr error
	}{
		{
			name: "DepositZero",
			run: func(s *Service, a, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Deposit(ctx, a.ID, decimal.Zero)
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "DepositNegative",
			run: func(s *Service, a, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Deposit(ctx, a.ID, amount("-5.00"))
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "DepositSubCent",
			run: func(s *Service, a, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Deposit(ctx, a.ID, amount("1.001"))
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "DepositUnknownAccount",
			run: func(s *Service, _, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Deposit(ctx, 9999, amount("1.00"))
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name: "WithdrawNegative",
			run: func(s *Service, a, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Withdraw(ctx, a.ID, amount("-1.00"))
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "WithdrawOverBalance",
			run: func(s *Service, a, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Withdraw(ctx, a.ID, amount("1000.01"))
			},
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name: "WithdrawUnknownAccount",
			run: func(s *Service, _, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Withdraw(ctx, 9999, amount("1.00"))
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name: "TransferZero",
			run: func(s *Service, a, b domain.Account) (domain.LedgerEntry, error) {
				return s.Transfer(ctx, a.ID, b.ID, decimal.Zero)
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "TransferSameAccount",
			run: func(s *Service, a, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Transfer(ctx, a.ID, a.ID, amount("100.00"))
			},
			wantErr: domain.ErrSameAccount,
		},
		{
			name: "TransferSameUnknownAccount",
			run: func(s *Service, _, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Transfer(ctx, 9999, 9999, amount("100.00"))
			},
			wantErr: domain.ErrSameAccount,
		},
		{
			name: "TransferInvalidAmountBeforeSameAccount",
			run: func(s *Service, a, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Transfer(ctx, a.ID, a.ID, amount("-1.00"))
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "TransferUnknownSender",
			run: func(s *Service, _, b domain.Account) (domain.LedgerEntry, error) {
				return s.Transfer(ctx, 9999, b.ID, amount("1.00"))
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name: "TransferUnknownReceiver",
			run: func(s *Service, a, _ domain.Account) (domain.LedgerEntry, error) {
				return s.Transfer(ctx, a.ID, 9999, amount("1.00"))
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name: "TransferOverBalance",
			run: func(s *Service, a, b domain.Account) (domain.LedgerEntry, error) {
				return s.Transfer(ctx, a.ID, b.ID, amount("1000.01"))
			},
			wantErr: domain.ErrInsufficientFunds,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newMemService()
			a := seedAccount(t, s, "1000.00")
			b := seedAccount(t, s, "1000.00")

			res, err := tc.run(s, a, b)
			require.ErrorIs(t, err, tc.wantErr)
			require.Empty(t, res)

			// A failed operation leaves balances and entry logs untouched.
			for _, id := range []int32{a.ID, b.ID} {
				requireBalance(t, s, id, "1000.00")

				n, err := s.TransactionCount(ctx, id)
				require.NoError(t, err)
				require.Equal(t, int64(1), n)
			}

			audit, err := s.AuditTrail(ctx, 100, 0)
			require.NoError(t, err)
			require.Len(t, audit, 4)
		})
	}
}

func TestWithdrawScenario(t *testing.T) {
	s, _ := newMemService()
	a := seedAccount(t, s, "1000.00")

	_, err := s.Withdraw(context.Background(), a.ID, amount("4000.00"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	requireBalance(t, s, a.ID, "1000.00")
}

func TestTransferScenario(t *testing.T) {
	s, repo := newMemService()
	ctx := context.Background()
	a := seedAccount(t, s, "8000.00")
	b := seedAccount(t, s, "12000.00")

	entry, err := s.Transfer(ctx, a.ID, b.ID, amount("3000.00"))
	require.NoError(t, err)

	requireBalance(t, s, a.ID, "5000.00")
	requireBalance(t, s, b.ID, "15000.00")

	want := domain.LedgerEntry{
		Kind:          domain.KindTransfer,
		FromAccountID: domain.AccountRef(a.ID),
		ToAccountID:   domain.AccountRef(b.ID),
		Amount:        amount("3000.00"),
	}

	opts := []cmp.Option{
		cmpopts.IgnoreFields(domain.LedgerEntry{}, "ID", "CreatedAt"),
		cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) }),
	}
	if diff := cmp.Diff(want, entry, opts...); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}

	entries, err := repo.ListEntries(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entry.ID, entries[1].ID)

	entries, err = repo.ListEntries(ctx, b.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entry.ID, entries[1].ID)
}

func TestTransferConservesTotal(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()
	a := seedAccount(t, s, "500.00")
	b := seedAccount(t, s, "700.25")

	for i := 0; i < 20; i++ {
		from, to := a.ID, b.ID
		if i%2 == 1 {
			from, to = to, from
		}

		_, err := s.Transfer(ctx, from, to, randompkg.MoneyAmountBetween(1, 500))
		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}

		balA, err := s.BalanceOf(ctx, a.ID)
		require.NoError(t, err)
		balB, err := s.BalanceOf(ctx, b.ID)
		require.NoError(t, err)

		require.True(t, balA.Add(balB).Equal(amount("1200.25")))
		require.False(t, balA.IsNegative())
		require.False(t, balB.IsNegative())
	}
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()
	a := seedAccount(t, s, "100.00")
	b := seedAccount(t, s, "100.00")

	var g errgroup.Group

	g.Go(func() error {
		_, err := s.Transfer(ctx, a.ID, b.ID, amount("10.00"))
		return err
	})
	g.Go(func() error {
		_, err := s.Transfer(ctx, b.ID, a.ID, amount("10.00"))
		return err
	})
	require.NoError(t, g.Wait())

	requireBalance(t, s, a.ID, "100.00")
	requireBalance(t, s, b.ID, "100.00")

	// Funding deposit plus both transfers.
	for _, id := range []int32{a.ID, b.ID} {
		n, err := s.TransactionCount(ctx, id)
		require.NoError(t, err)
		require.Equal(t, int64(3), n)
	}
}

func TestConcurrentOperationsStress(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()

	const (
		accountsN = 5
		workers   = 8
		rounds    = 200
	)

	ids := make([]int32, 0, accountsN)
	for i := 0; i < accountsN; i++ {
		ids = append(ids, seedAccount(t, s, "1000.00").ID)
	}

	// Net external flow in cents and number of committed operations.
	var netCents, committed atomic.Int64

	var g errgroup.Group

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < rounds; i++ {
				from := ids[randompkg.Intn(accountsN)]
				to := ids[randompkg.Intn(accountsN)]
				amt := randompkg.MoneyAmountBetween(1, 300)

				var err error

				switch randompkg.Intn(3) {
				case 0:
					_, err = s.Deposit(ctx, to, amt)
					if err == nil {
						netCents.Add(amt.Shift(2).IntPart())
					}
				case 1:
					_, err = s.Withdraw(ctx, from, amt)
					if err == nil {
						netCents.Add(-amt.Shift(2).IntPart())
					}
				default:
					_, err = s.Transfer(ctx, from, to, amt)
				}

				switch {
				case err == nil:
					committed.Add(1)
				case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrSameAccount):
				default:
					return err
				}
			}

			return nil
		})
	}

	// Readers run alongside writers and must never see a negative balance.
	g.Go(func() error {
		for i := 0; i < rounds; i++ {
			bal, err := s.BalanceOf(ctx, ids[randompkg.Intn(accountsN)])
			if err != nil {
				return err
			}

			if bal.IsNegative() {
				return errors.New("negative balance observed: " + bal.String())
			}
		}

		return nil
	})

	require.NoError(t, g.Wait())

	total := decimal.Zero

	for _, id := range ids {
		bal, err := s.BalanceOf(ctx, id)
		require.NoError(t, err)
		require.False(t, bal.IsNegative())

		total = total.Add(bal)
	}

	want := decimal.New(accountsN*1000*100+netCents.Load(), -2)
	require.Truef(t, total.Equal(want), "total: got %s, want %s", total, want)

	audit, err := s.AuditTrail(ctx, 1_000_000, 0)
	require.NoError(t, err)
	// Every account was opened and funded before the workers started.
	require.Len(t, audit, 2*accountsN+int(committed.Load()))
}

func TestInactiveAccounts(t *testing.T) {
	ctx := context.Background()

	for _, status := range []domain.AccountStatus{domain.StatusFrozen, domain.StatusClosed} {
		t.Run(string(status), func(t *testing.T) {
			s, _ := newMemService()
			a := seedAccount(t, s, "0.00")
			b := seedAccount(t, s, "50.00")

			_, err := s.ChangeStatus(ctx, a.ID, status)
			require.NoError(t, err)

			_, err = s.Deposit(ctx, a.ID, amount("1.00"))
			require.ErrorIs(t, err, domain.ErrAccountNotActive)

			_, err = s.Withdraw(ctx, a.ID, amount("1.00"))
			require.ErrorIs(t, err, domain.ErrAccountNotActive)

			_, err = s.Transfer(ctx, b.ID, a.ID, amount("1.00"))
			require.ErrorIs(t, err, domain.ErrAccountNotActive)

			_, err = s.Transfer(ctx, a.ID, b.ID, amount("1.00"))
			require.ErrorIs(t, err, domain.ErrAccountNotActive)

			requireBalance(t, s, b.ID, "50.00")

			got, err := s.StatusOf(ctx, a.ID)
			require.NoError(t, err)
			require.Equal(t, status, got)
		})
	}
}

func TestChangeStatus(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name     string
		balance  string
		path     []domain.AccountStatus
		wantErr  error
		wantLast domain.AccountStatus
	}{
		{
			name:     "FreezeAndThaw",
			balance:  "10.00",
			path:     []domain.AccountStatus{domain.StatusFrozen, domain.StatusActive},
			wantLast: domain.StatusActive,
		},
		{
			name:     "CloseEmpty",
			balance:  "0",
			path:     []domain.AccountStatus{domain.StatusClosed},
			wantLast: domain.StatusClosed,
		},
		{
			name:     "CloseFrozenEmpty",
			balance:  "0",
			path:     []domain.AccountStatus{domain.StatusFrozen, domain.StatusClosed},
			wantLast: domain.StatusClosed,
		},
		{
			name:     "CloseWithBalance",
			balance:  "10.00",
			path:     []domain.AccountStatus{domain.StatusClosed},
			wantErr:  domain.ErrAccountNotEmpty,
			wantLast: domain.StatusActive,
		},
		{
			name:     "ReopenClosed",
			balance:  "0",
			path:     []domain.AccountStatus{domain.StatusClosed, domain.StatusActive},
			wantErr:  domain.ErrInvalidStatusTransition,
			wantLast: domain.StatusClosed,
		},
		{
			name:     "UnknownStatus",
			balance:  "0",
			path:     []domain.AccountStatus{"dormant"},
			wantErr:  domain.ErrInvalidStatus,
			wantLast: domain.StatusActive,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newMemService()
			a := seedAccount(t, s, tc.balance)

			var err error
			for _, status := range tc.path {
				if _, err = s.ChangeStatus(ctx, a.ID, status); err != nil {
					break
				}
			}

			require.ErrorIs(t, err, tc.wantErr)

			got, err := s.StatusOf(ctx, a.ID)
			require.NoError(t, err)
			require.Equal(t, tc.wantLast, got)
		})
	}

	t.Run("UnknownAccount", func(t *testing.T) {
		s, _ := newMemService()

		_, err := s.ChangeStatus(ctx, 42, domain.StatusFrozen)
		require.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("SameStatusIsNoop", func(t *testing.T) {
		s, _ := newMemService()
		a := seedAccount(t, s, "0")

		got, err := s.ChangeStatus(ctx, a.ID, domain.StatusActive)
		require.NoError(t, err)
		require.Equal(t, domain.StatusActive, got.Status)

		audit, err := s.AuditTrail(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, audit, 1)
	})
}

func TestOpenAccount(t *testing.T) {
	s, _ := newMemService()
	ctx := domain.ContextWithActor(context.Background(), "teller-7")

	_, err := s.OpenAccount(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidOwner)

	owner := randompkg.Owner()

	a, err := s.OpenAccount(ctx, owner)
	require.NoError(t, err)
	require.NotZero(t, a.ID)
	require.Equal(t, owner, a.Owner)
	require.Equal(t, domain.StatusActive, a.Status)
	require.True(t, a.Balance.IsZero())

	audit, err := s.AuditTrail(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	require.Equal(t, "teller-7", audit[0].Actor)
	require.Equal(t, domain.ActivityOpenAccount, audit[0].Activity)
}

func TestLookupsUnknownAccount(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()

	_, err := s.BalanceOf(ctx, 7)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = s.StatusOf(ctx, 7)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = s.TransactionCount(ctx, 7)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = s.LastTransactionTime(ctx, 7)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = s.History(ctx, 7, 10, 0)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = s.Stats(ctx, 7)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = s.GetEntry(ctx, 7)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestLastTransactionTime(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	a := seedAccount(t, s, "0")
	b := seedAccount(t, s, "0")

	last, err := s.LastTransactionTime(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, last.IsZero())

	_, err = s.Deposit(ctx, b.ID, amount("20.00"))
	require.NoError(t, err)

	clock = clock.Add(time.Hour)

	_, err = s.Transfer(ctx, b.ID, a.ID, amount("5.00"))
	require.NoError(t, err)

	for _, id := range []int32{a.ID, b.ID} {
		last, err = s.LastTransactionTime(ctx, id)
		require.NoError(t, err)
		require.Equal(t, clock, last)
	}
}

func TestHistory(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()
	a := seedAccount(t, s, "0")

	for i := 1; i <= 5; i++ {
		_, err := s.Deposit(ctx, a.ID, decimal.NewFromInt(int64(i)))
		require.NoError(t, err)
	}

	entries, err := s.History(ctx, a.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.True(t, entries[0].Amount.Equal(decimal.NewFromInt(2)))
	require.True(t, entries[1].Amount.Equal(decimal.NewFromInt(3)))

	entries, err = s.History(ctx, a.ID, 10, 10)
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = s.History(ctx, a.ID, 0, 0)
	require.ErrorIs(t, err, domain.ErrInvalidPage)

	_, err = s.History(ctx, a.ID, 1, -1)
	require.ErrorIs(t, err, domain.ErrInvalidPage)

	_, err = s.AuditTrail(ctx, -1, 0)
	require.ErrorIs(t, err, domain.ErrInvalidPage)
}

// faultyRepo injects storage failures into units of work of an in-memory store.
type faultyRepo struct {
	*ledgerrepo.RepoMem
	failSetBalanceAt int // 1-based call to fail, zero disables
	failCommit       bool
}

func (r *faultyRepo) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	uow, err := r.RepoMem.Begin(ctx)
	if err != nil {
		return nil, err
	}

	return &faultyTx{UnitOfWork: uow, repo: r}, nil
}

type faultyTx struct {
	domain.UnitOfWork
	repo        *faultyRepo
	setBalances int
}

var errDiskFull = errors.New("disk full")

func (tx *faultyTx) SetBalance(ctx context.Context, id int32, balance decimal.Decimal) (domain.Account, error) {
	tx.setBalances++
	if tx.setBalances == tx.repo.failSetBalanceAt {
		return domain.Account{}, errDiskFull
	}

	return tx.UnitOfWork.SetBalance(ctx, id, balance)
}

func (tx *faultyTx) Commit(ctx context.Context) error {
	if tx.repo.failCommit {
		_ = tx.UnitOfWork.Rollback(ctx)
		return errDiskFull
	}

	return tx.UnitOfWork.Commit(ctx)
}

func TestTransferStorageFailure(t *testing.T) {
	testCases := []struct {
		name  string
		fault faultyRepo
	}{
		{
			name:  "SecondLeg",
			fault: faultyRepo{failSetBalanceAt: 2},
		},
		{
			name:  "Commit",
			fault: faultyRepo{failCommit: true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			healthy, mem := newMemService()
			a := seedAccount(t, healthy, "300.00")
			b := seedAccount(t, healthy, "300.00")

			tc.fault.RepoMem = mem
			s := New(&tc.fault, nil)

			_, err := s.Transfer(ctx, a.ID, b.ID, amount("100.00"))
			require.ErrorIs(t, err, errorspkg.ErrStorageFailure)

			requireBalance(t, healthy, a.ID, "300.00")
			requireBalance(t, healthy, b.ID, "300.00")

			for _, id := range []int32{a.ID, b.ID} {
				n, err := healthy.TransactionCount(ctx, id)
				require.NoError(t, err)
				require.Equal(t, int64(1), n)
			}

			audit, err := healthy.AuditTrail(ctx, 100, 0)
			require.NoError(t, err)
			require.Len(t, audit, 4)

			// The locks were released, so the store keeps serving operations.
			_, err = healthy.Transfer(ctx, a.ID, b.ID, amount("100.00"))
			require.NoError(t, err)
		})
	}
}

func TestBeginFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	repo.EXPECT().Begin(gomock.Any()).Times(1).Return(nil, errors.New("connection refused"))

	s := New(repo, nil)

	_, err := s.Deposit(context.Background(), 1, amount("1.00"))
	require.ErrorIs(t, err, errorspkg.ErrStorageFailure)
}

func TestLookupStorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	repo.EXPECT().GetAccount(gomock.Any(), gomock.Eq(int32(3))).Times(1).Return(domain.Account{ID: 3}, nil)
	repo.EXPECT().CountEntries(gomock.Any(), gomock.Eq(int32(3))).Times(1).Return(int64(0), errors.New("timeout"))

	s := New(repo, nil)

	_, err := s.TransactionCount(context.Background(), 3)
	require.ErrorIs(t, err, errorspkg.ErrStorageFailure)
}

func TestPublishCommittedEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := domain.ContextWithActor(context.Background(), "clerk")
	repo := ledgerrepo.NewRepoMem()
	publisher := NewMockPublisher(ctrl)
	s := New(repo, publisher)

	a, err := s.OpenAccount(ctx, randompkg.Owner())
	require.NoError(t, err)

	var got domain.EntryCommitted

	publisher.EXPECT().PublishEntry(gomock.Any(), gomock.Any()).Times(1).
		DoAndReturn(func(_ context.Context, event domain.EntryCommitted) error {
			got = event
			return nil
		})

	entry, err := s.Deposit(ctx, a.ID, amount("12.50"))
	require.NoError(t, err)

	require.NotEmpty(t, got.EventID)
	require.Equal(t, "clerk", got.Actor)
	require.Equal(t, entry.ID, got.Entry.ID)

	// Publishing failures never undo a committed operation.
	publisher.EXPECT().PublishEntry(gomock.Any(), gomock.Any()).Times(1).Return(errors.New("broker down"))

	_, err = s.Withdraw(ctx, a.ID, amount("2.50"))
	require.NoError(t, err)
	requireBalance(t, s, a.ID, "10.00")

	// Rejected operations publish nothing.
	publisher.EXPECT().PublishEntry(gomock.Any(), gomock.Any()).Times(0)

	_, err = s.Withdraw(ctx, a.ID, amount("100.00"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestListAccounts(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()

	owner := randompkg.Owner()

	want := make([]domain.Account, 0, 3)

	for i := 0; i < 3; i++ {
		a, err := s.OpenAccount(ctx, owner)
		require.NoError(t, err)

		want = append(want, a)
	}

	_, err := s.OpenAccount(ctx, owner+"x")
	require.NoError(t, err)

	got, err := s.ListAccounts(ctx, owner, 10, 0)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListAccounts(%q) mismatch (-want +got):\n%s", owner, diff)
	}

	got, err = s.ListAccounts(ctx, owner, 2, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, want[2].ID, got[0].ID)

	_, err = s.ListAccounts(ctx, "", 10, 0)
	require.ErrorIs(t, err, domain.ErrInvalidOwner)

	_, err = s.ListAccounts(ctx, owner, 0, 0)
	require.ErrorIs(t, err, domain.ErrInvalidPage)
}

func TestGetEntry(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()

	a := seedAccount(t, s, "50.00")
	b := seedAccount(t, s, "0")

	want, err := s.Transfer(ctx, a.ID, b.ID, amount("20.00"))
	require.NoError(t, err)

	got, err := s.GetEntry(ctx, want.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetEntry(%d) mismatch (-want +got):\n%s", want.ID, diff)
	}

	_, err = s.GetEntry(ctx, want.ID+100)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestStatsSnapshotIsConsistent(t *testing.T) {
	s, _ := newMemService()
	ctx := context.Background()

	a := seedAccount(t, s, "0")

	const deposits = 200

	var g errgroup.Group

	g.Go(func() error {
		for i := 0; i < deposits; i++ {
			if _, err := s.Deposit(ctx, a.ID, amount("1.00")); err != nil {
				return err
			}
		}

		return nil
	})

	// Every deposit adds one entry and 1.00, so a consistent snapshot has balance == count.
	g.Go(func() error {
		for i := 0; i < deposits; i++ {
			stats, err := s.Stats(ctx, a.ID)
			if err != nil {
				return err
			}

			if !stats.Account.Balance.Equal(decimal.NewFromInt(stats.TransactionCount)) {
				return fmt.Errorf("balance %s with %d entries", stats.Account.Balance, stats.TransactionCount)
			}

			if stats.TransactionCount > 0 && stats.LastTransactionTime.IsZero() {
				return fmt.Errorf("%d entries without a last transaction time", stats.TransactionCount)
			}
		}

		return nil
	})

	require.NoError(t, g.Wait())

	stats, err := s.Stats(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, int64(deposits), stats.TransactionCount)
	require.Equal(t, a.ID, stats.Account.ID)
}
