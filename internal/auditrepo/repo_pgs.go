// Package auditrepo manages repository layer of audit records.
package auditrepo

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/pkg/dbpkg"
	"github.com/mockbank/ledgersvc/pkg/errorspkg"
)

// RepoPGS facilitates audit repository layer logic. Records are append-only.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns audit RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const appendQuery = `
INSERT INTO
    audit_logs (actor, action, object_type, object_id, request_id, metadata)
VALUES
    ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, '')::jsonb)
RETURNING id, created_at
`

// Append writes an audit record.
func (r *RepoPGS) Append(ctx context.Context, arg domain.CreateAuditParams) (domain.AuditRecord, error) {
	l := zerolog.Ctx(ctx)

	rec := domain.AuditRecord{
		Actor:      arg.Actor,
		Action:     arg.Action,
		ObjectType: arg.ObjectType,
		ObjectID:   arg.ObjectID,
		RequestID:  arg.RequestID,
		Metadata:   arg.Metadata,
	}

	row := r.db.QueryRowContext(ctx, appendQuery,
		arg.Actor,
		arg.Action,
		arg.ObjectType,
		arg.ObjectID,
		arg.RequestID,
		arg.Metadata,
	)

	err := row.Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		l.Error().Err(err).Msgf("Append(ctx, %+v)", arg)
		return rec, errorspkg.ErrInternal
	}

	return rec, nil
}

const listForObjectQuery = `
SELECT id, COALESCE(actor, ''), action, object_type, object_id, COALESCE(request_id, ''), COALESCE(metadata::text, ''), created_at
FROM audit_logs
WHERE object_type = $1 AND object_id = $2
ORDER BY id
`

// ListForObject returns the audit trail of a single object.
func (r *RepoPGS) ListForObject(ctx context.Context, objectType, objectID string) ([]domain.AuditRecord, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listForObjectQuery, objectType, objectID)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.AuditRecord{}

	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.Actor, &rec.Action, &rec.ObjectType, &rec.ObjectID, &rec.RequestID, &rec.Metadata, &rec.CreatedAt); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, rec)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}
