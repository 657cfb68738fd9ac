// Package accountservice manages business logic layer of accounts.
package accountservice

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/internal/accountrepo"
	"github.com/mockbank/ledgersvc/internal/domain"
)

// The entry listing limit is clamped rather than rejected.
const maxEntryListLimit = 200

// Repo provides data access layer interface needed by account service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package accountservice
type Repo interface {
	Get(ctx context.Context, id string) (domain.Account, error)
	ListForOwner(ctx context.Context, owner string) ([]accountrepo.AccountWithBalance, error)
	GetBalance(ctx context.Context, accountID string) (domain.Balance, error)
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) (domain.Account, error)
}

// EntryRepo provides ledger entry access needed by the account service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package accountservice
type EntryRepo interface {
	ListForAccount(ctx context.Context, accountID string, limit int32) ([]domain.Entry, error)
}

// Service facilitates account service layer logic.
type Service struct {
	repo      Repo
	entryRepo EntryRepo
}

// New returns account service struct to manage account bussines logic.
func New(ar Repo, er EntryRepo) *Service {
	return &Service{
		repo:      ar,
		entryRepo: er,
	}
}

// Get returns the account with the given id.
func (s *Service) Get(ctx context.Context, id string) (domain.Account, error) {
	return s.repo.Get(ctx, id)
}

// ListForOwner returns the accounts of the given owner with balances.
func (s *Service) ListForOwner(ctx context.Context, owner string) ([]accountrepo.AccountWithBalance, error) {
	return s.repo.ListForOwner(ctx, owner)
}

// GetBalance returns the balance of the account after checking ownership.
// Unowned accounts are indistinguishable from missing ones.
func (s *Service) GetBalance(ctx context.Context, owner, accountID string) (domain.Balance, error) {
	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return domain.Balance{}, err
	}

	if account.Owner != owner {
		return domain.Balance{}, domain.ErrAccountNotFound
	}

	return s.repo.GetBalance(ctx, accountID)
}

// ListEntries returns the most recent ledger entries of an owned account.
func (s *Service) ListEntries(ctx context.Context, owner, accountID string, limit int32) ([]domain.Entry, error) {
	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.Owner != owner {
		return nil, domain.ErrAccountNotFound
	}

	if limit < 1 || limit > maxEntryListLimit {
		limit = maxEntryListLimit
	}

	return s.entryRepo.ListForAccount(ctx, accountID, limit)
}

// UpdateStatus applies an externally triggered account status transition.
func (s *Service) UpdateStatus(ctx context.Context, owner, accountID, status string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	if !domain.ValidAccountStatus(status) {
		return domain.Account{}, domain.ErrInvalidAccountStatus
	}

	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}

	if account.Owner != owner {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	updated, err := s.repo.UpdateStatus(ctx, accountID, domain.AccountStatus(status))
	if err != nil {
		return domain.Account{}, err
	}

	l.Info().Str("account_id", accountID).Str("status", status).Msg("account status updated")

	return updated, nil
}
