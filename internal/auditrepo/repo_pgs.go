// Package auditrepo manages repository layer of audit records.
package auditrepo

import (
	"context"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates audit repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns audit RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const createQuery = `
INSERT INTO
    audit_records (actor, activity, detail, created_at)
VALUES
    ($1, $2, $3, $4)
RETURNING id, actor, activity, detail, created_at
`

// Create appends the audit record and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateAuditParams) (domain.AuditRecord, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery, arg.Actor, arg.Activity, arg.Detail, arg.CreatedAt)

	var a domain.AuditRecord

	err := row.Scan(
		&a.ID,
		&a.Actor,
		&a.Activity,
		&a.Detail,
		&a.CreatedAt,
	)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)
		return domain.AuditRecord{}, errorspkg.ErrStorageFailure
	}

	a.CreatedAt = a.CreatedAt.UTC()

	return a, nil
}

const listQuery = `
SELECT id, actor, activity, detail, created_at FROM audit_records
ORDER BY id
LIMIT $1 OFFSET $2
`

// List returns the specified page of audit records.
func (r *RepoPGS) List(ctx context.Context, limit, offset int32) ([]domain.AuditRecord, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrStorageFailure
	}
	defer rows.Close()

	items := []domain.AuditRecord{}

	for rows.Next() {
		var a domain.AuditRecord
		if err := rows.Scan(&a.ID, &a.Actor, &a.Activity, &a.Detail, &a.CreatedAt); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrStorageFailure
		}

		a.CreatedAt = a.CreatedAt.UTC()
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
