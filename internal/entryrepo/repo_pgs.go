// Package entryrepo manages repository layer of ledger entries.
package entryrepo

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/pkg/dbpkg"
	"github.com/mockbank/ledgersvc/pkg/errorspkg"
)

// RepoPGS facilitates ledger entry repository layer logic.
// Entries are append-only and never updated or deleted.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns entry RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const createQuery = `
INSERT INTO
    ledger_entries (account_id, direction, amount, transfer_id)
VALUES
    ($1, $2, $3, $4)
RETURNING id, account_id, direction, amount, transfer_id, created_at
`

// Create appends a ledger entry referencing the given transfer.
func (r *RepoPGS) Create(ctx context.Context, accountID string, direction domain.EntryDirection, amount decimal.Decimal, transferID string) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery, accountID, direction, amount, transferID)

	var e domain.Entry

	err := row.Scan(&e.ID, &e.AccountID, &e.Direction, &e.Amount, &e.TransferID, &e.CreatedAt)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %v, %v, %v, %v)", accountID, direction, amount, transferID)
		return e, errorspkg.ErrInternal
	}

	return e, nil
}

const listForAccountQuery = `
SELECT id, account_id, direction, amount, transfer_id, created_at
FROM ledger_entries
WHERE account_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`

// ListForAccount returns the most recent entries of the account.
func (r *RepoPGS) ListForAccount(ctx context.Context, accountID string, limit int32) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listForAccountQuery, accountID, limit)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Entry{}

	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Direction, &e.Amount, &e.TransferID, &e.CreatedAt); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, e)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const listForTransferQuery = `
SELECT id, account_id, direction, amount, transfer_id, created_at
FROM ledger_entries
WHERE transfer_id = $1
ORDER BY id
`

// ListForTransfer returns the entries referencing the given transfer.
func (r *RepoPGS) ListForTransfer(ctx context.Context, transferID string) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listForTransferQuery, transferID)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Entry{}

	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Direction, &e.Amount, &e.TransferID, &e.CreatedAt); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, e)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}
