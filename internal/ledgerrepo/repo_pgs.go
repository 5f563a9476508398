package ledgerrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/auditrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/entryrepo"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS stores the ledger in Postgres; every unit of work is one database transaction.
type RepoPGS struct {
	conn     *sql.DB
	accounts *accountrepo.RepoPGS
	entries  *entryrepo.RepoPGS
	audit    *auditrepo.RepoPGS
}

// NewRepoPGS returns RepoPGS with connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		conn:     db,
		accounts: accountrepo.NewRepoPGS(db),
		entries:  entryrepo.NewRepoPGS(db),
		audit:    auditrepo.NewRepoPGS(db),
	}
}

// Begin starts a database transaction.
func (r *RepoPGS) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return nil, errorspkg.ErrStorageFailure
	}

	return &pgTx{
		tx:       tx,
		accounts: accountrepo.NewRepoPGS(tx),
		entries:  entryrepo.NewRepoPGS(tx),
		audit:    auditrepo.NewRepoPGS(tx),
	}, nil
}

// GetAccount returns the committed account.
func (r *RepoPGS) GetAccount(ctx context.Context, id int32) (domain.Account, error) {
	return r.accounts.Get(ctx, id)
}

// ListAccounts returns the accounts of owner ordered by ID.
func (r *RepoPGS) ListAccounts(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error) {
	return r.accounts.List(ctx, owner, limit, offset)
}

// GetEntry returns the committed entry with the given ID.
func (r *RepoPGS) GetEntry(ctx context.Context, id int64) (domain.LedgerEntry, error) {
	return r.entries.Get(ctx, id)
}

// CountEntries returns the number of entries where the account is sender or receiver.
func (r *RepoPGS) CountEntries(ctx context.Context, accountID int32) (int64, error) {
	return r.entries.Count(ctx, accountID)
}

// LastEntryTime returns the creation time of the latest entry involving the account.
func (r *RepoPGS) LastEntryTime(ctx context.Context, accountID int32) (time.Time, error) {
	return r.entries.LastTime(ctx, accountID)
}

// ListEntries returns the entries involving the account ordered by ID.
func (r *RepoPGS) ListEntries(ctx context.Context, accountID int32, limit, offset int32) ([]domain.LedgerEntry, error) {
	return r.entries.List(ctx, accountID, limit, offset)
}

// ListAudit returns audit records ordered by ID.
func (r *RepoPGS) ListAudit(ctx context.Context, limit, offset int32) ([]domain.AuditRecord, error) {
	return r.audit.List(ctx, limit, offset)
}

type pgTx struct {
	tx       *sql.Tx
	accounts *accountrepo.RepoPGS
	entries  *entryrepo.RepoPGS
	audit    *auditrepo.RepoPGS
}

func (t *pgTx) CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	return t.accounts.Create(ctx, arg)
}

// GetAccount locks the account row for the rest of the transaction.
func (t *pgTx) GetAccount(ctx context.Context, id int32) (domain.Account, error) {
	return t.accounts.GetForUpdate(ctx, id)
}

func (t *pgTx) SetBalance(ctx context.Context, id int32, balance decimal.Decimal) (domain.Account, error) {
	return t.accounts.UpdateBalance(ctx, id, balance)
}

func (t *pgTx) SetStatus(ctx context.Context, id int32, status domain.AccountStatus) (domain.Account, error) {
	return t.accounts.UpdateStatus(ctx, id, status)
}

func (t *pgTx) AppendEntry(ctx context.Context, arg domain.CreateEntryParams) (domain.LedgerEntry, error) {
	return t.entries.Create(ctx, arg)
}

func (t *pgTx) AppendAudit(ctx context.Context, arg domain.CreateAuditParams) (domain.AuditRecord, error) {
	return t.audit.Create(ctx, arg)
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return errorspkg.ErrStorageFailure
	}

	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return errorspkg.ErrStorageFailure
	}

	return nil
}
