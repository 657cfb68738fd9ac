// Package userservice manages business logic layer of users.
package userservice

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/pkg/passpkg"
)

// Repo provides data access layer interface needed by user service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package userservice
type Repo interface {
	Get(ctx context.Context, username string) (domain.User, error)
}

// Service facilitates user service layer logic.
type Service struct {
	repo Repo
}

// New return user service struct to manage user bussines logic.
func New(ur Repo) *Service {
	return &Service{
		repo: ur,
	}
}

// CheckPassword checks if the password is valid for the given username.
func (s *Service) CheckPassword(ctx context.Context, username, pass string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	gotUser, err := s.repo.Get(ctx, username)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return domain.User{}, domain.ErrWrongPassword
		}

		return domain.User{}, err
	}

	if err := passpkg.Check(pass, gotUser.HashedPassword); err != nil {
		l.Warn().Str("username", username).Msg("failed login attempt")
		return domain.User{}, domain.ErrWrongPassword
	}

	return gotUser, nil
}
