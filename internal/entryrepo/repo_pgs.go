// Package entryrepo manages repository layer of ledger entries.
package entryrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates entry repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns entry RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const columns = `id, kind, from_account_id, to_account_id, amount, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (domain.LedgerEntry, error) {
	var (
		e        domain.LedgerEntry
		from, to sql.NullInt32
	)

	err := row.Scan(
		&e.ID,
		&e.Kind,
		&from,
		&to,
		&e.Amount,
		&e.CreatedAt,
	)
	if err != nil {
		return e, err
	}

	if from.Valid {
		e.FromAccountID = domain.AccountRef(from.Int32)
	}

	if to.Valid {
		e.ToAccountID = domain.AccountRef(to.Int32)
	}

	e.CreatedAt = e.CreatedAt.UTC()

	return e, nil
}

func nullable(ref *int32) sql.NullInt32 {
	if ref == nil {
		return sql.NullInt32{}
	}

	return sql.NullInt32{Int32: *ref, Valid: true}
}

const createQuery = `
INSERT INTO
    ledger_entries (kind, from_account_id, to_account_id, amount, created_at)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING ` + columns

// Create appends the entry and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateEntryParams) (domain.LedgerEntry, error) {
	l := zerolog.Ctx(ctx)

	if err := arg.Validate(); err != nil {
		l.Info().Err(err).Send()
		return domain.LedgerEntry{}, err
	}

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.Kind,
		nullable(arg.FromAccountID),
		nullable(arg.ToAccountID),
		arg.Amount,
		arg.CreatedAt,
	)

	e, err := scan(row)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Constraint {
			case "ledger_entries_from_account_id_fkey", "ledger_entries_to_account_id_fkey":
				return domain.LedgerEntry{}, domain.ErrAccountNotFound
			case "ledger_entries_amount_check":
				return domain.LedgerEntry{}, domain.ErrInvalidAmount
			case "ledger_entries_sides_check":
				return domain.LedgerEntry{}, domain.ErrInvalidEntry
			}
		}

		return domain.LedgerEntry{}, errorspkg.ErrStorageFailure
	}

	return e, nil
}

const getQuery = `
SELECT ` + columns + ` FROM ledger_entries
WHERE id = $1 LIMIT 1
`

// Get returns the entry with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.LedgerEntry, error) {
	l := zerolog.Ctx(ctx)

	e, err := scan(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, domain.ErrEntryNotFound
		}

		l.Error().Err(err).Send()

		return e, errorspkg.ErrStorageFailure
	}

	return e, nil
}

const countQuery = `
SELECT count(*) FROM ledger_entries
WHERE from_account_id = $1 OR to_account_id = $1
`

// Count returns the number of entries where the account is sender or receiver.
func (r *RepoPGS) Count(ctx context.Context, accountID int32) (int64, error) {
	var n int64

	if err := r.db.QueryRowContext(ctx, countQuery, accountID).Scan(&n); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return 0, errorspkg.ErrStorageFailure
	}

	return n, nil
}

const lastTimeQuery = `
SELECT max(created_at) FROM ledger_entries
WHERE from_account_id = $1 OR to_account_id = $1
`

// LastTime returns the creation time of the latest entry involving the account,
// or the zero time when there is none.
func (r *RepoPGS) LastTime(ctx context.Context, accountID int32) (time.Time, error) {
	var last sql.NullTime

	if err := r.db.QueryRowContext(ctx, lastTimeQuery, accountID).Scan(&last); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return time.Time{}, errorspkg.ErrStorageFailure
	}

	if !last.Valid {
		return time.Time{}, nil
	}

	return last.Time.UTC(), nil
}

const listQuery = `
SELECT ` + columns + ` FROM ledger_entries
WHERE from_account_id = $1 OR to_account_id = $1
ORDER BY id
LIMIT $2 OFFSET $3
`

// List returns the specified number of entries involving the given account.
func (r *RepoPGS) List(ctx context.Context, accountID int32, limit, offset int32) ([]domain.LedgerEntry, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, accountID, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrStorageFailure
	}
	defer rows.Close()

	items := []domain.LedgerEntry{}

	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrStorageFailure
		}

		items = append(items, e)
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
