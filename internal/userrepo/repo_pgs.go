// Package userrepo manages repository layer of users.
package userrepo

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/pkg/dbpkg"
	"github.com/mockbank/ledgersvc/pkg/errorspkg"
)

// RepoPGS facilitates user repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns user RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const getQuery = `
SELECT id, username, hashed_password, created_at
FROM users
WHERE username = $1
`

// Get returns the user with the given username.
func (r *RepoPGS) Get(ctx context.Context, username string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	var u domain.User

	row := r.db.QueryRowContext(ctx, getQuery, username)

	err := row.Scan(&u.ID, &u.Username, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return u, domain.ErrUserNotFound
		}

		l.Error().Err(err).Send()

		return u, errorspkg.ErrInternal
	}

	return u, nil
}
