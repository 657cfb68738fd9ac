// Package transferrepo manages repository layer of transfers.
package transferrepo

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mockbank/ledgersvc/internal/accountrepo"
	"github.com/mockbank/ledgersvc/internal/auditrepo"
	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/internal/entryrepo"
	"github.com/mockbank/ledgersvc/pkg/dbpkg"
	"github.com/mockbank/ledgersvc/pkg/errorspkg"
)

// RepoPGS facilitates transfer repository layer logic.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns transfer RepoPGS bound to an existing transaction.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// NewRepoPGS returns transfer RepoPGS with a connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

const createQuery = `
INSERT INTO
    transfers (id, from_account_id, to_account_id, amount, status, idempotency_key)
VALUES
    ($1, $2, $3, $4, $5, NULLIF($6, ''))
RETURNING id, from_account_id, to_account_id, amount, status, COALESCE(idempotency_key, ''), created_at
`

// Create persists a transfer row in PROCESSING state.
func (r *RepoPGS) Create(ctx context.Context, id string, arg domain.CreateTransferParams) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		id,
		arg.FromAccountID,
		arg.ToAccountID,
		arg.Amount,
		domain.TransferProcessing,
		arg.IdempotencyKey,
	)

	var t domain.Transfer

	err := row.Scan(
		&t.ID,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.Amount,
		&t.Status,
		&t.IdempotencyKey,
		&t.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %v, %+v)", id, arg)

		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "uq_transfer_idem":
				return t, domain.ErrDuplicateTransfer
			case "transfers_from_account_id_fkey", "transfers_to_account_id_fkey":
				return t, domain.ErrAccountNotFound
			case "transfers_amount_check":
				return t, domain.ErrInvalidAmount
			}
		}

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

// CreateWithAudit persists the PROCESSING transfer row and its creation
// audit record in a single transaction.
func (r *RepoPGS) CreateWithAudit(ctx context.Context, id string, arg domain.CreateTransferParams, audit domain.CreateAuditParams) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	var t domain.Transfer

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return t, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	t, err = NewTxRepoPGS(tx).Create(ctx, id, arg)
	if err != nil {
		return t, err
	}

	if _, err := auditrepo.NewRepoPGS(tx).Append(ctx, audit); err != nil {
		return t, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const getQuery = `
SELECT id, from_account_id, to_account_id, amount, status, COALESCE(idempotency_key, ''), created_at
FROM transfers
WHERE id = $1
`

// Get returns the transfer with the given id.
func (r *RepoPGS) Get(ctx context.Context, id string) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	var t domain.Transfer

	err := row.Scan(
		&t.ID,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.Amount,
		&t.Status,
		&t.IdempotencyKey,
		&t.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return t, domain.ErrTransferNotFound
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const listForOwnerQuery = `
SELECT t.id, t.from_account_id, t.to_account_id, t.amount, t.status, COALESCE(t.idempotency_key, ''), t.created_at
FROM transfers t
JOIN accounts a ON a.id = t.from_account_id
WHERE a.owner = $1
ORDER BY t.created_at DESC
LIMIT $2
`

// ListForOwner returns the most recent transfers sent from accounts of the owner.
func (r *RepoPGS) ListForOwner(ctx context.Context, owner string, limit int32) ([]domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listForOwnerQuery, owner, limit)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transfer{}

	for rows.Next() {
		var t domain.Transfer
		if err := rows.Scan(
			&t.ID,
			&t.FromAccountID,
			&t.ToAccountID,
			&t.Amount,
			&t.Status,
			&t.IdempotencyKey,
			&t.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const updateStatusQuery = `
UPDATE transfers
SET status = $1
WHERE id = $2 AND status = 'PROCESSING'
RETURNING id, from_account_id, to_account_id, amount, status, COALESCE(idempotency_key, ''), created_at
`

// UpdateStatus moves a PROCESSING transfer to a terminal status. Terminal
// states are final: updating an already terminal transfer is a no-op that
// returns the stored row unchanged.
func (r *RepoPGS) UpdateStatus(ctx context.Context, id string, status domain.TransferStatus) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, updateStatusQuery, status, id)

	var t domain.Transfer

	err := row.Scan(
		&t.ID,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.Amount,
		&t.Status,
		&t.IdempotencyKey,
		&t.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return r.Get(ctx, id)
		}

		l.Error().Err(err).Msgf("UpdateStatus(ctx, %v, %v)", id, status)

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

// ApplyResult is the outcome of the atomic balance-mutation step.
type ApplyResult struct {
	Transfer    domain.Transfer `json:"transfer"`
	FromBalance domain.Balance  `json:"from_balance"`
	ToBalance   domain.Balance  `json:"to_balance"`
	FromEntry   domain.Entry    `json:"from_entry"`
	ToEntry     domain.Entry    `json:"to_entry"`
}

// Apply executes the atomic step of a transfer in one transaction:
// lock both account rows in ascending id order, re-check statuses under
// the lock, materialize balances, debit and credit, append the DEBIT and
// CREDIT ledger entries, and mark the transfer SUCCESS.
//
// Any error rolls back every mutation; row locks are released at
// transaction end on every exit path.
func (r *RepoPGS) Apply(ctx context.Context, transferID, fromAccountID, toAccountID string, amount decimal.Decimal) (ApplyResult, error) {
	l := zerolog.Ctx(ctx)

	var result ApplyResult

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	accountRepo := accountrepo.NewRepoPGS(tx)
	entryRepo := entryrepo.NewRepoPGS(tx)

	statuses, err := accountRepo.LockMany(ctx, fromAccountID, toAccountID)
	if err != nil {
		return result, err
	}

	// Statuses may have changed since the pre-check outside the
	// transaction; the read under lock is authoritative.
	if err := checkStatuses(statuses, fromAccountID, toAccountID); err != nil {
		return result, err
	}

	fromBalance, err := accountRepo.EnsureBalance(ctx, fromAccountID)
	if err != nil {
		return result, err
	}

	if _, err := accountRepo.EnsureBalance(ctx, toAccountID); err != nil {
		return result, err
	}

	if fromBalance.Amount.LessThan(amount) {
		return result, domain.ErrInsufficientBalance
	}

	result.FromBalance, err = accountRepo.AddBalance(ctx, fromAccountID, amount.Neg())
	if err != nil {
		return result, err
	}

	result.ToBalance, err = accountRepo.AddBalance(ctx, toAccountID, amount)
	if err != nil {
		return result, err
	}

	result.FromEntry, err = entryRepo.Create(ctx, fromAccountID, domain.DirectionDebit, amount, transferID)
	if err != nil {
		return result, err
	}

	result.ToEntry, err = entryRepo.Create(ctx, toAccountID, domain.DirectionCredit, amount, transferID)
	if err != nil {
		return result, err
	}

	result.Transfer, err = NewTxRepoPGS(tx).UpdateStatus(ctx, transferID, domain.TransferSuccess)
	if err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	return result, nil
}

func checkStatuses(statuses map[string]domain.AccountStatus, fromAccountID, toAccountID string) error {
	switch {
	case statuses[fromAccountID] == domain.StatusFrozen:
		return domain.ErrSourceAccountFrozen
	case statuses[toAccountID] == domain.StatusFrozen:
		return domain.ErrDestinationAccountFrozen
	case statuses[fromAccountID] == domain.StatusClosed:
		return domain.ErrSourceAccountClosed
	case statuses[toAccountID] == domain.StatusClosed:
		return domain.ErrDestinationAccountClosed
	}

	return nil
}
