// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/shopspring/decimal"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const columns = `id, owner, balance, status, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Owner,
		&a.Balance,
		&a.Status,
		&a.CreatedAt,
	)
	a.CreatedAt = a.CreatedAt.UTC()

	return a, err
}

// mapErr translates driver errors into domain errors.
func mapErr(ctx context.Context, err error) error {
	l := zerolog.Ctx(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		l.Info().Err(err).Send()
		return domain.ErrAccountNotFound
	}

	l.Error().Err(err).Send()

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "accounts_balance_check":
			return domain.ErrInsufficientFunds
		case "accounts_status_check":
			return domain.ErrInvalidStatus
		case "accounts_owner_check":
			return domain.ErrInvalidOwner
		}
	}

	return errorspkg.ErrStorageFailure
}

const createQuery = `
INSERT INTO
    accounts (owner, balance, status, created_at)
VALUES
    ($1, $2, $3, $4)
RETURNING ` + columns

// Create creates the account and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, createQuery, arg.Owner, arg.Balance, arg.Status, arg.CreatedAt)

	a, err := scan(row)
	if err != nil {
		return domain.Account{}, mapErr(ctx, err)
	}

	return a, nil
}

const getQuery = `
SELECT ` + columns + `
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int32) (domain.Account, error) {
	a, err := scan(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		return domain.Account{}, mapErr(ctx, err)
	}

	return a, nil
}

const getForUpdateQuery = getQuery + `FOR NO KEY UPDATE`

// GetForUpdate returns the account and locks its row until the surrounding transaction ends.
func (r *RepoPGS) GetForUpdate(ctx context.Context, id int32) (domain.Account, error) {
	a, err := scan(r.db.QueryRowContext(ctx, getForUpdateQuery, id))
	if err != nil {
		return domain.Account{}, mapErr(ctx, err)
	}

	return a, nil
}

const updateBalanceQuery = `
UPDATE accounts
SET balance = $1
WHERE id = $2
RETURNING ` + columns

// UpdateBalance sets the account's balance and returns the changed account.
func (r *RepoPGS) UpdateBalance(ctx context.Context, id int32, balance decimal.Decimal) (domain.Account, error) {
	a, err := scan(r.db.QueryRowContext(ctx, updateBalanceQuery, balance, id))
	if err != nil {
		return domain.Account{}, mapErr(ctx, err)
	}

	return a, nil
}

const updateStatusQuery = `
UPDATE accounts
SET status = $1
WHERE id = $2
RETURNING ` + columns

// UpdateStatus sets the account's status and returns the changed account.
func (r *RepoPGS) UpdateStatus(ctx context.Context, id int32, status domain.AccountStatus) (domain.Account, error) {
	a, err := scan(r.db.QueryRowContext(ctx, updateStatusQuery, status, id))
	if err != nil {
		return domain.Account{}, mapErr(ctx, err)
	}

	return a, nil
}

const listQuery = `
SELECT ` + columns + `
FROM accounts
WHERE owner = $1
ORDER BY id
LIMIT $2 OFFSET $3
`

// List returns the specified number of accounts for the given owner.
func (r *RepoPGS) List(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, owner, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrStorageFailure
	}
	defer rows.Close()

	items := []domain.Account{}

	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrStorageFailure
		}

		items = append(items, a)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrStorageFailure
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrStorageFailure
	}

	return items, nil
}
