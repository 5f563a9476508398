// Package domain provides definitions of all ledger entities.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountNotActive indicates that the account is frozen or closed.
	ErrAccountNotActive = errors.New("account not active")
	// ErrAccountNotEmpty indicates that the account still holds money and cannot be closed.
	ErrAccountNotEmpty = errors.New("account balance is not zero")
	// ErrInvalidStatus indicates an unknown account status.
	ErrInvalidStatus = errors.New("invalid account status")
	// ErrInvalidStatusTransition indicates that the account cannot move to the requested status.
	ErrInvalidStatusTransition = errors.New("invalid account status transition")
	// ErrInvalidOwner indicates an empty owner reference.
	ErrInvalidOwner = errors.New("invalid owner")
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

// Account statuses.
const (
	StatusActive AccountStatus = "active"
	StatusFrozen AccountStatus = "frozen"
	StatusClosed AccountStatus = "closed"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusFrozen, StatusClosed:
		return true
	}

	return false
}

// CanTransitionTo reports whether an account in status s may move to next.
// Closed is terminal.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}

	return s != StatusClosed
}

// Account holds the balance of a single owner.
type Account struct {
	ID        int32           `json:"id"`
	Owner     string          `json:"owner"`
	Balance   decimal.Decimal `json:"balance"`
	Status    AccountStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsActive reports whether the account may take part in balance changes.
func (a Account) IsActive() bool {
	return a.Status == StatusActive
}

// CreateAccountParams is the input data to provision an account.
type CreateAccountParams struct {
	Owner     string          `json:"owner"`
	Balance   decimal.Decimal `json:"balance"`
	Status    AccountStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// ErrInvalidPage indicates a non-positive limit or a negative offset.
var ErrInvalidPage = errors.New("invalid page")

// AccountStats is a consistent snapshot of an account and its entry activity.
type AccountStats struct {
	Account             Account
	TransactionCount    int64
	LastTransactionTime time.Time // zero when the account has no entries
}
