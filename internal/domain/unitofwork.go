package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// UnitOfWork stages the writes of a single ledger operation.
//
// Nothing written through a UnitOfWork is visible to other readers until Commit returns nil.
// Rollback discards every staged write and is a no-op after a successful Commit, so callers
// may always defer it.
type UnitOfWork interface {
	CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error)
	GetAccount(ctx context.Context, id int32) (Account, error)
	SetBalance(ctx context.Context, id int32, balance decimal.Decimal) (Account, error)
	SetStatus(ctx context.Context, id int32, status AccountStatus) (Account, error)
	AppendEntry(ctx context.Context, arg CreateEntryParams) (LedgerEntry, error)
	AppendAudit(ctx context.Context, arg CreateAuditParams) (AuditRecord, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
