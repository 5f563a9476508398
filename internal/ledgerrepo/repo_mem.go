// Package ledgerrepo provides the persistence backends of the ledger engine.
//
// RepoMem keeps everything in process memory, RepoPGS stores it in Postgres.
// Both hand out a domain.UnitOfWork per operation.
package ledgerrepo

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoMem is an in-memory ledger store safe for concurrent use.
type RepoMem struct {
	mu       sync.RWMutex
	accounts map[int32]domain.Account
	entries  []domain.LedgerEntry
	entryPos map[int64]int // entry ID -> position in entries
	audit    []domain.AuditRecord

	lastAccountID atomic.Int32
	lastEntryID   atomic.Int64
	lastAuditID   atomic.Int64
}

// NewRepoMem returns an empty RepoMem.
func NewRepoMem() *RepoMem {
	return &RepoMem{
		accounts: make(map[int32]domain.Account),
		entryPos: make(map[int64]int),
	}
}

// Begin starts a unit of work whose writes are applied atomically on Commit.
func (r *RepoMem) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	return &memTx{
		repo:     r,
		accounts: make(map[int32]domain.Account),
	}, nil
}

// GetAccount returns a copy of the committed account.
func (r *RepoMem) GetAccount(ctx context.Context, id int32) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return a, nil
}

// ListAccounts returns the accounts of owner ordered by ID.
func (r *RepoMem) ListAccounts(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owned := []domain.Account{}

	for _, a := range r.accounts {
		if a.Owner == owner {
			owned = append(owned, a)
		}
	}

	sort.Slice(owned, func(i, j int) bool { return owned[i].ID < owned[j].ID })

	b := page(len(owned), limit, offset)

	return owned[b.from:b.to], nil
}

// GetEntry returns the committed entry with the given ID.
func (r *RepoMem) GetEntry(ctx context.Context, id int64) (domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.entryPos[id]
	if !ok {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}

	return r.entries[pos], nil
}

// involving returns the committed entries that debit or credit the account, in commit order.
// The caller must hold r.mu.
func (r *RepoMem) involving(accountID int32) []domain.LedgerEntry {
	items := []domain.LedgerEntry{}

	for _, e := range r.entries {
		if e.Involves(accountID) {
			items = append(items, e)
		}
	}

	return items
}

// CountEntries returns the number of entries where the account is sender or receiver.
func (r *RepoMem) CountEntries(ctx context.Context, accountID int32) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.involving(accountID))), nil
}

// LastEntryTime returns the creation time of the latest entry involving the account,
// or the zero time when there is none.
func (r *RepoMem) LastEntryTime(ctx context.Context, accountID int32) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.involving(accountID)
	if len(items) == 0 {
		return time.Time{}, nil
	}

	return items[len(items)-1].CreatedAt, nil
}

// ListEntries returns the entries involving the account ordered by ID.
func (r *RepoMem) ListEntries(ctx context.Context, accountID int32, limit, offset int32) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.involving(accountID)
	b := page(len(items), limit, offset)

	return items[b.from:b.to], nil
}

// ListAudit returns audit records in commit order.
func (r *RepoMem) ListAudit(ctx context.Context, limit, offset int32) ([]domain.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	positions := page(len(r.audit), limit, offset)
	items := make([]domain.AuditRecord, positions.to-positions.from)
	copy(items, r.audit[positions.from:positions.to])

	return items, nil
}

type bounds struct{ from, to int }

func page(n int, limit, offset int32) bounds {
	if limit < 0 {
		limit = 0
	}

	if offset < 0 {
		offset = 0
	}

	from := int(offset)
	if from > n {
		from = n
	}

	to := from + int(limit)
	if to > n {
		to = n
	}

	return bounds{from: from, to: to}
}

// memTx stages writes against a RepoMem.
//
// It is used by a single goroutine; the engine's account locks keep concurrent units of work
// on disjoint accounts.
type memTx struct {
	repo     *RepoMem
	accounts map[int32]domain.Account // staged account states
	entries  []domain.LedgerEntry
	audit    []domain.AuditRecord
	done     bool
}

func (tx *memTx) CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	if tx.done {
		return domain.Account{}, errTxDone(ctx)
	}

	if arg.Owner == "" {
		return domain.Account{}, domain.ErrInvalidOwner
	}

	if arg.Balance.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	if !arg.Status.Valid() {
		return domain.Account{}, domain.ErrInvalidStatus
	}

	a := domain.Account{
		ID:        tx.repo.lastAccountID.Add(1),
		Owner:     arg.Owner,
		Balance:   arg.Balance,
		Status:    arg.Status,
		CreatedAt: arg.CreatedAt,
	}

	tx.accounts[a.ID] = a

	return a, nil
}

func (tx *memTx) GetAccount(ctx context.Context, id int32) (domain.Account, error) {
	if tx.done {
		return domain.Account{}, errTxDone(ctx)
	}

	if a, ok := tx.accounts[id]; ok {
		return a, nil
	}

	return tx.repo.GetAccount(ctx, id)
}

func (tx *memTx) SetBalance(ctx context.Context, id int32, balance decimal.Decimal) (domain.Account, error) {
	a, err := tx.GetAccount(ctx, id)
	if err != nil {
		return a, err
	}

	if balance.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	a.Balance = balance
	tx.accounts[id] = a

	return a, nil
}

func (tx *memTx) SetStatus(ctx context.Context, id int32, status domain.AccountStatus) (domain.Account, error) {
	a, err := tx.GetAccount(ctx, id)
	if err != nil {
		return a, err
	}

	if !status.Valid() {
		return domain.Account{}, domain.ErrInvalidStatus
	}

	a.Status = status
	tx.accounts[id] = a

	return a, nil
}

func (tx *memTx) AppendEntry(ctx context.Context, arg domain.CreateEntryParams) (domain.LedgerEntry, error) {
	if tx.done {
		return domain.LedgerEntry{}, errTxDone(ctx)
	}

	if err := arg.Validate(); err != nil {
		return domain.LedgerEntry{}, err
	}

	for _, ref := range []*int32{arg.FromAccountID, arg.ToAccountID} {
		if ref == nil {
			continue
		}

		if _, err := tx.GetAccount(ctx, *ref); err != nil {
			return domain.LedgerEntry{}, err
		}
	}

	e := domain.LedgerEntry{
		ID:            tx.repo.lastEntryID.Add(1),
		Kind:          arg.Kind,
		FromAccountID: arg.FromAccountID,
		ToAccountID:   arg.ToAccountID,
		Amount:        arg.Amount,
		CreatedAt:     arg.CreatedAt,
	}

	tx.entries = append(tx.entries, e)

	return e, nil
}

func (tx *memTx) AppendAudit(ctx context.Context, arg domain.CreateAuditParams) (domain.AuditRecord, error) {
	if tx.done {
		return domain.AuditRecord{}, errTxDone(ctx)
	}

	rec := domain.AuditRecord{
		ID:        tx.repo.lastAuditID.Add(1),
		Actor:     arg.Actor,
		Activity:  arg.Activity,
		Detail:    arg.Detail,
		CreatedAt: arg.CreatedAt,
	}

	tx.audit = append(tx.audit, rec)

	return rec, nil
}

// Commit publishes every staged write under the store lock, so readers see all or nothing.
func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return errTxDone(ctx)
	}

	tx.done = true

	r := tx.repo

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range tx.accounts {
		r.accounts[id] = a
	}

	for _, e := range tx.entries {
		r.entryPos[e.ID] = len(r.entries)
		r.entries = append(r.entries, e)
	}

	r.audit = append(r.audit, tx.audit...)

	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	tx.done = true
	tx.accounts, tx.entries, tx.audit = nil, nil, nil

	return nil
}

func errTxDone(ctx context.Context) error {
	zerolog.Ctx(ctx).Error().Msg("unit of work already finished")
	return errorspkg.ErrStorageFailure
}
