// Package ledgerservice manages business logic layer of the ledger.
//
// Service is the only writer of account balances. Every balance-changing operation runs as one
// unit of work while holding the exclusive lock of each account it touches, so readers observe
// either the state before or after an operation and never a partial one.
package ledgerservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice

// Repo provides data access layer interface needed by the ledger service layer.
type Repo interface {
	Begin(ctx context.Context) (domain.UnitOfWork, error)
	GetAccount(ctx context.Context, id int32) (domain.Account, error)
	ListAccounts(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error)
	GetEntry(ctx context.Context, id int64) (domain.LedgerEntry, error)
	CountEntries(ctx context.Context, accountID int32) (int64, error)
	LastEntryTime(ctx context.Context, accountID int32) (time.Time, error)
	ListEntries(ctx context.Context, accountID int32, limit, offset int32) ([]domain.LedgerEntry, error)
	ListAudit(ctx context.Context, limit, offset int32) ([]domain.AuditRecord, error)
}

// Publisher announces committed entries to the outside world.
type Publisher interface {
	PublishEntry(ctx context.Context, event domain.EntryCommitted) error
}

// Service facilitates ledger service layer logic.
type Service struct {
	repo      Repo
	publisher Publisher
	locks     *lockTable
	now       func() time.Time
}

// New returns the ledger service. A nil publisher disables events.
func New(r Repo, p Publisher) *Service {
	return &Service{
		repo:      r,
		publisher: p,
		locks:     newLockTable(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// knownErrs pass through to the caller unchanged; anything else is a storage failure.
var knownErrs = []error{
	domain.ErrInvalidAmount,
	domain.ErrAccountNotFound,
	domain.ErrAccountNotActive,
	domain.ErrAccountNotEmpty,
	domain.ErrInsufficientFunds,
	domain.ErrSameAccount,
	domain.ErrInvalidStatus,
	domain.ErrInvalidStatusTransition,
	domain.ErrInvalidOwner,
	domain.ErrInvalidEntry,
	domain.ErrEntryNotFound,
	domain.ErrInvalidPage,
	errorspkg.ErrStorageFailure,
}

func normalize(ctx context.Context, err error) error {
	for _, known := range knownErrs {
		if errors.Is(err, known) {
			return known
		}
	}

	zerolog.Ctx(ctx).Error().Err(err).Msg("unexpected storage error")

	return errorspkg.ErrStorageFailure
}

// execTx runs fn within a unit of work, committing on success and rolling back otherwise.
func (s *Service) execTx(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	l := zerolog.Ctx(ctx)

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return normalize(ctx, err)
	}

	defer func() {
		if rbErr := uow.Rollback(ctx); rbErr != nil {
			l.Error().Err(rbErr).Msg("rollback failed")
		}
	}()

	if err := fn(uow); err != nil {
		l.Info().Err(err).Msg("unit of work aborted")
		return normalize(ctx, err)
	}

	if err := uow.Commit(ctx); err != nil {
		return normalize(ctx, err)
	}

	return nil
}

// withLocks holds the exclusive locks of ids while fn runs.
func (s *Service) withLocks(fn func() error, ids ...int32) error {
	unlock := s.locks.lock(ids...)
	defer unlock()

	return fn()
}

func (s *Service) publish(ctx context.Context, entry domain.LedgerEntry) {
	if s.publisher == nil {
		return
	}

	event := domain.EntryCommitted{
		EventID:    uuid.NewString(),
		Actor:      domain.ActorFromContext(ctx),
		Entry:      entry,
		OccurredAt: s.now(),
	}

	if err := s.publisher.PublishEntry(ctx, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("entry_id", entry.ID).Msg("cannot publish committed entry")
	}
}

func activeAccount(ctx context.Context, uow domain.UnitOfWork, id int32) (domain.Account, error) {
	a, err := uow.GetAccount(ctx, id)
	if err != nil {
		return a, err
	}

	if !a.IsActive() {
		return a, domain.ErrAccountNotActive
	}

	return a, nil
}

func (s *Service) audit(ctx context.Context, uow domain.UnitOfWork, activity, detail string) error {
	_, err := uow.AppendAudit(ctx, domain.CreateAuditParams{
		Actor:     domain.ActorFromContext(ctx),
		Activity:  activity,
		Detail:    detail,
		CreatedAt: s.now(),
	})

	return err
}

// Deposit credits amount to the account.
func (s *Service) Deposit(ctx context.Context, accountID int32, amount decimal.Decimal) (domain.LedgerEntry, error) {
	l := zerolog.Ctx(ctx)

	if !moneypkg.IsPositiveAmount(amount) {
		l.Info().Str("amount", amount.String()).Msg("rejected deposit amount")
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}

	var entry domain.LedgerEntry

	err := s.withLocks(func() error {
		return s.execTx(ctx, func(uow domain.UnitOfWork) error {
			a, err := activeAccount(ctx, uow, accountID)
			if err != nil {
				return err
			}

			if _, err := uow.SetBalance(ctx, accountID, a.Balance.Add(amount)); err != nil {
				return err
			}

			entry, err = uow.AppendEntry(ctx, domain.CreateEntryParams{
				Kind:        domain.KindDeposit,
				ToAccountID: domain.AccountRef(accountID),
				Amount:      amount,
				CreatedAt:   s.now(),
			})
			if err != nil {
				return err
			}

			detail := fmt.Sprintf("deposit %s to account %d", moneypkg.Format(amount), accountID)

			return s.audit(ctx, uow, domain.ActivityDeposit, detail)
		})
	}, accountID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	s.publish(ctx, entry)

	return entry, nil
}

// Withdraw debits amount from the account.
func (s *Service) Withdraw(ctx context.Context, accountID int32, amount decimal.Decimal) (domain.LedgerEntry, error) {
	l := zerolog.Ctx(ctx)

	if !moneypkg.IsPositiveAmount(amount) {
		l.Info().Str("amount", amount.String()).Msg("rejected withdrawal amount")
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}

	var entry domain.LedgerEntry

	err := s.withLocks(func() error {
		return s.execTx(ctx, func(uow domain.UnitOfWork) error {
			a, err := activeAccount(ctx, uow, accountID)
			if err != nil {
				return err
			}

			if a.Balance.LessThan(amount) {
				return domain.ErrInsufficientFunds
			}

			if _, err := uow.SetBalance(ctx, accountID, a.Balance.Sub(amount)); err != nil {
				return err
			}

			entry, err = uow.AppendEntry(ctx, domain.CreateEntryParams{
				Kind:          domain.KindWithdrawal,
				FromAccountID: domain.AccountRef(accountID),
				Amount:        amount,
				CreatedAt:     s.now(),
			})
			if err != nil {
				return err
			}

			detail := fmt.Sprintf("withdraw %s from account %d", moneypkg.Format(amount), accountID)

			return s.audit(ctx, uow, domain.ActivityWithdrawal, detail)
		})
	}, accountID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	s.publish(ctx, entry)

	return entry, nil
}

// Transfer moves amount from one account to another as a single atomic step.
func (s *Service) Transfer(ctx context.Context, fromID, toID int32, amount decimal.Decimal) (domain.LedgerEntry, error) {
	l := zerolog.Ctx(ctx)

	if !moneypkg.IsPositiveAmount(amount) {
		l.Info().Str("amount", amount.String()).Msg("rejected transfer amount")
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}

	if fromID == toID {
		l.Info().Int32("account_id", fromID).Msg("rejected transfer to the same account")
		return domain.LedgerEntry{}, domain.ErrSameAccount
	}

	var entry domain.LedgerEntry

	err := s.withLocks(func() error {
		return s.execTx(ctx, func(uow domain.UnitOfWork) error {
			// Row locks are taken in the same ascending order as the account locks.
			first, second := fromID, toID
			if second < first {
				first, second = second, first
			}

			accounts := make(map[int32]domain.Account, 2)

			for _, id := range []int32{first, second} {
				a, err := activeAccount(ctx, uow, id)
				if err != nil {
					return err
				}

				accounts[id] = a
			}

			from, to := accounts[fromID], accounts[toID]

			if from.Balance.LessThan(amount) {
				return domain.ErrInsufficientFunds
			}

			balances := map[int32]decimal.Decimal{
				fromID: from.Balance.Sub(amount),
				toID:   to.Balance.Add(amount),
			}

			for _, id := range []int32{first, second} {
				if _, err := uow.SetBalance(ctx, id, balances[id]); err != nil {
					return err
				}
			}

			var err error

			entry, err = uow.AppendEntry(ctx, domain.CreateEntryParams{
				Kind:          domain.KindTransfer,
				FromAccountID: domain.AccountRef(fromID),
				ToAccountID:   domain.AccountRef(toID),
				Amount:        amount,
				CreatedAt:     s.now(),
			})
			if err != nil {
				return err
			}

			detail := fmt.Sprintf("transfer %s from account %d to account %d", moneypkg.Format(amount), fromID, toID)

			return s.audit(ctx, uow, domain.ActivityTransfer, detail)
		})
	}, fromID, toID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	s.publish(ctx, entry)

	return entry, nil
}

// OpenAccount provisions a new active account with zero balance.
func (s *Service) OpenAccount(ctx context.Context, owner string) (domain.Account, error) {
	if owner == "" {
		return domain.Account{}, domain.ErrInvalidOwner
	}

	var account domain.Account

	// The account ID is unknown before creation, so no other operation can contend for it.
	err := s.execTx(ctx, func(uow domain.UnitOfWork) error {
		var err error

		account, err = uow.CreateAccount(ctx, domain.CreateAccountParams{
			Owner:     owner,
			Balance:   decimal.Zero,
			Status:    domain.StatusActive,
			CreatedAt: s.now(),
		})
		if err != nil {
			return err
		}

		detail := fmt.Sprintf("open account %d for owner %s", account.ID, owner)

		return s.audit(ctx, uow, domain.ActivityOpenAccount, detail)
	})
	if err != nil {
		return domain.Account{}, err
	}

	return account, nil
}

// ChangeStatus moves the account to status. Closed is terminal and requires a zero balance.
// Requesting the current status is a no-op.
func (s *Service) ChangeStatus(ctx context.Context, accountID int32, status domain.AccountStatus) (domain.Account, error) {
	if !status.Valid() {
		return domain.Account{}, domain.ErrInvalidStatus
	}

	var account domain.Account

	err := s.withLocks(func() error {
		return s.execTx(ctx, func(uow domain.UnitOfWork) error {
			a, err := uow.GetAccount(ctx, accountID)
			if err != nil {
				return err
			}

			account = a

			if a.Status == status {
				return nil
			}

			if !a.Status.CanTransitionTo(status) {
				return domain.ErrInvalidStatusTransition
			}

			if status == domain.StatusClosed && !a.Balance.IsZero() {
				return domain.ErrAccountNotEmpty
			}

			account, err = uow.SetStatus(ctx, accountID, status)
			if err != nil {
				return err
			}

			detail := fmt.Sprintf("account %d status %s -> %s", accountID, a.Status, status)

			return s.audit(ctx, uow, domain.ActivityChangeStatus, detail)
		})
	}, accountID)
	if err != nil {
		return domain.Account{}, err
	}

	return account, nil
}

// GetAccount returns a snapshot of the account.
func (s *Service) GetAccount(ctx context.Context, accountID int32) (domain.Account, error) {
	unlock := s.locks.rlock(accountID)
	defer unlock()

	a, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return domain.Account{}, normalize(ctx, err)
	}

	return a, nil
}

// ListAccounts returns a page of the accounts held by owner, ordered by ID.
func (s *Service) ListAccounts(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error) {
	if owner == "" {
		return nil, domain.ErrInvalidOwner
	}

	if limit <= 0 || offset < 0 {
		return nil, domain.ErrInvalidPage
	}

	accounts, err := s.repo.ListAccounts(ctx, owner, limit, offset)
	if err != nil {
		return nil, normalize(ctx, err)
	}

	return accounts, nil
}

// BalanceOf returns the current balance of the account.
func (s *Service) BalanceOf(ctx context.Context, accountID int32) (decimal.Decimal, error) {
	a, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	return a.Balance, nil
}

// StatusOf returns the current status of the account.
func (s *Service) StatusOf(ctx context.Context, accountID int32) (domain.AccountStatus, error) {
	a, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}

	return a.Status, nil
}

// TransactionCount returns the number of entries where the account is sender or receiver.
func (s *Service) TransactionCount(ctx context.Context, accountID int32) (int64, error) {
	unlock := s.locks.rlock(accountID)
	defer unlock()

	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return 0, normalize(ctx, err)
	}

	n, err := s.repo.CountEntries(ctx, accountID)
	if err != nil {
		return 0, normalize(ctx, err)
	}

	return n, nil
}

// LastTransactionTime returns the time of the latest entry involving the account.
// The zero time means the account has no entries yet.
func (s *Service) LastTransactionTime(ctx context.Context, accountID int32) (time.Time, error) {
	unlock := s.locks.rlock(accountID)
	defer unlock()

	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return time.Time{}, normalize(ctx, err)
	}

	last, err := s.repo.LastEntryTime(ctx, accountID)
	if err != nil {
		return time.Time{}, normalize(ctx, err)
	}

	return last, nil
}

// Stats returns the account together with its entry count and last entry time,
// all read under one account lock.
func (s *Service) Stats(ctx context.Context, accountID int32) (domain.AccountStats, error) {
	unlock := s.locks.rlock(accountID)
	defer unlock()

	a, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return domain.AccountStats{}, normalize(ctx, err)
	}

	n, err := s.repo.CountEntries(ctx, accountID)
	if err != nil {
		return domain.AccountStats{}, normalize(ctx, err)
	}

	last, err := s.repo.LastEntryTime(ctx, accountID)
	if err != nil {
		return domain.AccountStats{}, normalize(ctx, err)
	}

	return domain.AccountStats{Account: a, TransactionCount: n, LastTransactionTime: last}, nil
}

// GetEntry returns a committed entry. Entries are immutable, so no account lock is taken.
func (s *Service) GetEntry(ctx context.Context, id int64) (domain.LedgerEntry, error) {
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return domain.LedgerEntry{}, normalize(ctx, err)
	}

	return e, nil
}

// History returns a page of the entries involving the account, oldest first.
func (s *Service) History(ctx context.Context, accountID int32, limit, offset int32) ([]domain.LedgerEntry, error) {
	if limit <= 0 || offset < 0 {
		return nil, domain.ErrInvalidPage
	}

	unlock := s.locks.rlock(accountID)
	defer unlock()

	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, normalize(ctx, err)
	}

	entries, err := s.repo.ListEntries(ctx, accountID, limit, offset)
	if err != nil {
		return nil, normalize(ctx, err)
	}

	return entries, nil
}

// AuditTrail returns a page of audit records, oldest first.
func (s *Service) AuditTrail(ctx context.Context, limit, offset int32) ([]domain.AuditRecord, error) {
	if limit <= 0 || offset < 0 {
		return nil, domain.ErrInvalidPage
	}

	records, err := s.repo.ListAudit(ctx, limit, offset)
	if err != nil {
		return nil, normalize(ctx, err)
	}

	return records, nil
}
