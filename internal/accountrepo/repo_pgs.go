// Package accountrepo manages repository layer of accounts and balances.
package accountrepo

import (
	"context"
	"database/sql"
	"sort"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/pkg/dbpkg"
	"github.com/mockbank/ledgersvc/pkg/errorspkg"
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

const getQuery = `
SELECT id, owner, status, created_at
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	var a domain.Account

	row := r.db.QueryRowContext(ctx, getQuery, id)

	err := row.Scan(&a.ID, &a.Owner, &a.Status, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const listForOwnerQuery = `
SELECT a.id, a.owner, a.status, a.created_at, COALESCE(b.balance, 0)
FROM accounts a
LEFT JOIN account_balances b ON b.account_id = a.id
WHERE a.owner = $1
ORDER BY a.id
`

// AccountWithBalance is an account projection that includes the current balance.
type AccountWithBalance struct {
	domain.Account
	Balance decimal.Decimal `json:"balance"`
}

// ListForOwner returns all accounts of the given owner with their balances.
// Accounts without a materialized balance row report zero.
func (r *RepoPGS) ListForOwner(ctx context.Context, owner string) ([]AccountWithBalance, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listForOwnerQuery, owner)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []AccountWithBalance{}

	for rows.Next() {
		var a AccountWithBalance
		if err := rows.Scan(&a.ID, &a.Owner, &a.Status, &a.CreatedAt, &a.Balance); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const lockQuery = `
SELECT id, status
FROM accounts
WHERE id = $1
FOR UPDATE
`

// LockMany acquires exclusive row locks on the given accounts and returns
// their statuses as read under the lock. Lock requests are always issued in
// ascending id order so that concurrent transfers touching the same pair
// never wait on each other in a cycle.
func (r *RepoPGS) LockMany(ctx context.Context, ids ...string) (map[string]domain.AccountStatus, error) {
	l := zerolog.Ctx(ctx)

	ordered := make([]string, len(ids))
	copy(ordered, ids)
	sort.Strings(ordered)

	statuses := make(map[string]domain.AccountStatus, len(ordered))

	for _, id := range ordered {
		var (
			gotID  string
			status domain.AccountStatus
		)

		err := r.db.QueryRowContext(ctx, lockQuery, id).Scan(&gotID, &status)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, domain.ErrAccountNotFound
			}

			l.Error().Err(err).Send()

			return nil, errorspkg.ErrInternal
		}

		statuses[gotID] = status
	}

	return statuses, nil
}

const ensureBalanceQuery = `
INSERT INTO account_balances (account_id)
VALUES ($1)
ON CONFLICT (account_id) DO NOTHING
`

const getBalanceQuery = `
SELECT account_id, balance, updated_at
FROM account_balances
WHERE account_id = $1
`

// EnsureBalance lazily materializes a zero balance row for the account and
// returns the current balance. Callers must hold the account row lock.
func (r *RepoPGS) EnsureBalance(ctx context.Context, accountID string) (domain.Balance, error) {
	l := zerolog.Ctx(ctx)

	var b domain.Balance

	if _, err := r.db.ExecContext(ctx, ensureBalanceQuery, accountID); err != nil {
		l.Error().Err(err).Send()
		return b, errorspkg.ErrInternal
	}

	row := r.db.QueryRowContext(ctx, getBalanceQuery, accountID)

	err := row.Scan(&b.AccountID, &b.Amount, &b.UpdatedAt)
	if err != nil {
		l.Error().Err(err).Send()
		return b, errorspkg.ErrInternal
	}

	return b, nil
}

// GetBalance returns the balance of the account, zero if no row exists yet.
func (r *RepoPGS) GetBalance(ctx context.Context, accountID string) (domain.Balance, error) {
	l := zerolog.Ctx(ctx)

	b := domain.Balance{AccountID: accountID}

	row := r.db.QueryRowContext(ctx, getBalanceQuery, accountID)

	err := row.Scan(&b.AccountID, &b.Amount, &b.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return b, nil
		}

		l.Error().Err(err).Send()

		return b, errorspkg.ErrInternal
	}

	return b, nil
}

const addBalanceQuery = `
UPDATE account_balances
SET balance = balance + $1,
    updated_at = now()
WHERE account_id = $2
RETURNING account_id, balance, updated_at
`

// AddBalance applies delta to the account balance and returns the result.
// Callers must hold the account row lock for the enclosing transaction.
func (r *RepoPGS) AddBalance(ctx context.Context, accountID string, delta decimal.Decimal) (domain.Balance, error) {
	l := zerolog.Ctx(ctx)

	var b domain.Balance

	row := r.db.QueryRowContext(ctx, addBalanceQuery, delta, accountID)

	err := row.Scan(&b.AccountID, &b.Amount, &b.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return b, domain.ErrAccountNotFound
		}

		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "account_balances_balance_check" {
			return b, domain.ErrInsufficientBalance
		}

		l.Error().Err(err).Msgf("AddBalance(ctx, %v, %v)", accountID, delta)

		return b, errorspkg.ErrInternal
	}

	return b, nil
}

const updateStatusQuery = `
UPDATE accounts
SET status = $1
WHERE id = $2
RETURNING id, owner, status, created_at
`

// UpdateStatus sets the externally triggered account status.
func (r *RepoPGS) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	var a domain.Account

	row := r.db.QueryRowContext(ctx, updateStatusQuery, status, id)

	err := row.Scan(&a.ID, &a.Owner, &a.Status, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}
