package domain

import (
	"errors"
	"time"

	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount indicates a non-positive amount or one with more than 2 decimal places.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds indicates that the account balance does not cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSameAccount indicates a transfer whose sender and receiver are the same account.
	ErrSameAccount = errors.New("sender and receiver are the same account")
	// ErrInvalidEntry indicates an entry whose sender/receiver references do not match its kind.
	ErrInvalidEntry = errors.New("invalid ledger entry")
	// ErrEntryNotFound indicates that the entry is not found.
	ErrEntryNotFound = errors.New("entry not found")
)

// EntryKind is the kind of balance-affecting operation an entry records.
type EntryKind string

// Entry kinds.
const (
	KindDeposit    EntryKind = "deposit"
	KindWithdrawal EntryKind = "withdrawal"
	KindTransfer   EntryKind = "transfer"
)

// LedgerEntry is the immutable record of one committed balance-affecting operation.
type LedgerEntry struct {
	ID            int64           `json:"id"`
	Kind          EntryKind       `json:"kind"`
	FromAccountID *int32          `json:"from_account_id,omitempty"`
	ToAccountID   *int32          `json:"to_account_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"` // always positive
	CreatedAt     time.Time       `json:"created_at"`
}

// CreateEntryParams is the input data to append an entry.
type CreateEntryParams struct {
	Kind          EntryKind
	FromAccountID *int32
	ToAccountID   *int32
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// Validate checks that the sender/receiver references match the kind:
// deposits name only a receiver, withdrawals only a sender, transfers two distinct accounts.
func (p CreateEntryParams) Validate() error {
	if !moneypkg.IsPositiveAmount(p.Amount) {
		return ErrInvalidAmount
	}

	from, to := p.FromAccountID != nil, p.ToAccountID != nil

	switch p.Kind {
	case KindDeposit:
		if from || !to {
			return ErrInvalidEntry
		}
	case KindWithdrawal:
		if !from || to {
			return ErrInvalidEntry
		}
	case KindTransfer:
		if !from || !to {
			return ErrInvalidEntry
		}

		if *p.FromAccountID == *p.ToAccountID {
			return ErrSameAccount
		}
	default:
		return ErrInvalidEntry
	}

	return nil
}

// Involves reports whether the entry debits or credits the given account.
func (e LedgerEntry) Involves(accountID int32) bool {
	return (e.FromAccountID != nil && *e.FromAccountID == accountID) ||
		(e.ToAccountID != nil && *e.ToAccountID == accountID)
}

// AccountRef returns a pointer to a copy of id, for the optional entry references.
func AccountRef(id int32) *int32 {
	return &id
}
