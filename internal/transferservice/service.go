// Package transferservice manages business logic layer of transfers.
package transferservice

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/internal/transferrepo"
	"github.com/mockbank/ledgersvc/pkg/errorspkg"
)

// Repo provides data access layer interface needed by transfer service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type Repo interface {
	CreateWithAudit(ctx context.Context, id string, arg domain.CreateTransferParams, audit domain.CreateAuditParams) (domain.Transfer, error)
	Get(ctx context.Context, id string) (domain.Transfer, error)
	ListForOwner(ctx context.Context, owner string, limit int32) ([]domain.Transfer, error)
	UpdateStatus(ctx context.Context, id string, status domain.TransferStatus) (domain.Transfer, error)
	Apply(ctx context.Context, transferID, fromAccountID, toAccountID string, amount decimal.Decimal) (transferrepo.ApplyResult, error)
}

// AccountService provides account reads needed by transfer service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type AccountService interface {
	Get(ctx context.Context, id string) (domain.Account, error)
}

// Notifier reports terminal transfer statuses to the configured webhook.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type Notifier interface {
	Notify(ctx context.Context, transferID string, status domain.TransferStatus)
}

// Queue schedules deferred finalization work for async-mode transfers.
// Tasks carry only the transfer id; workers reload all state from the store.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type Queue interface {
	Enqueue(transferID string)
}

// Service facilitates transfer service layer logic.
type Service struct {
	repo           Repo
	accountService AccountService
	notifier       Notifier
	queue          Queue

	// syncNotify couples webhook delivery to the synchronous response
	// path when true; when false, delivery happens in the background.
	syncNotify bool
}

// New returns transfer service struct to manage transfer bussines logic.
func New(tr Repo, as AccountService, n Notifier, q Queue, syncNotify bool) *Service {
	return &Service{
		repo:           tr,
		accountService: as,
		notifier:       n,
		queue:          q,
		syncNotify:     syncNotify,
	}
}

type auditMetadata struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Mode   string `json:"mode"`
}

func (s *Service) validRequest(ctx context.Context, fromUsername string, arg domain.CreateTransferParams) error {
	l := zerolog.Ctx(ctx)

	if arg.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrNegativeAmount
	}

	if arg.FromAccountID == arg.ToAccountID {
		return domain.ErrSameAccount
	}

	fromAccount, err := s.accountService.Get(ctx, arg.FromAccountID)
	if err != nil {
		l.Info().Err(err).Send()
		return err
	}

	if fromAccount.Owner != fromUsername {
		// Existence of other users' accounts is not revealed.
		return domain.ErrAccountNotFound
	}

	toAccount, err := s.accountService.Get(ctx, arg.ToAccountID)
	if err != nil {
		l.Info().Err(err).Send()
		return err
	}

	// Fast pre-check before any row is written. Non-authoritative: the
	// same checks run again under the row locks in Apply.
	return accountStatusError(fromAccount.Status, toAccount.Status)
}

func accountStatusError(from, to domain.AccountStatus) error {
	switch {
	case from == domain.StatusFrozen:
		return domain.ErrSourceAccountFrozen
	case to == domain.StatusFrozen:
		return domain.ErrDestinationAccountFrozen
	case from == domain.StatusClosed:
		return domain.ErrSourceAccountClosed
	case to == domain.StatusClosed:
		return domain.ErrDestinationAccountClosed
	}

	return nil
}

// Create validates and persists a transfer, then either applies it
// synchronously or schedules deferred finalization.
func (s *Service) Create(ctx context.Context, fromUsername, requestID string, arg domain.CreateTransferParams) (domain.CreateTransferResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.CreateTransferResult

	if err := s.validRequest(ctx, fromUsername, arg); err != nil {
		return result, err
	}

	if arg.Mode == "" {
		arg.Mode = domain.ModeSync
	}

	meta, err := json.Marshal(auditMetadata{
		From:   arg.FromAccountID,
		To:     arg.ToAccountID,
		Amount: arg.Amount.StringFixed(2),
		Mode:   arg.Mode,
	})
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	transferID := uuid.NewString()

	audit := domain.CreateAuditParams{
		Actor:      fromUsername,
		Action:     "transfer_create",
		ObjectType: "transfer",
		ObjectID:   transferID,
		RequestID:  requestID,
		Metadata:   string(meta),
	}

	// The PROCESSING row is the durable handoff point: it exists before
	// any balance mutation on both the sync and async paths.
	if _, err := s.repo.CreateWithAudit(ctx, transferID, arg, audit); err != nil {
		return result, err
	}

	result.TransferID = transferID

	if arg.Mode == domain.ModeAsync {
		s.queue.Enqueue(transferID)

		result.Status = domain.TransferProcessing
		result.Accepted = true

		return result, nil
	}

	if _, err := s.repo.Apply(ctx, transferID, arg.FromAccountID, arg.ToAccountID, arg.Amount); err != nil {
		s.markFailed(ctx, transferID)
		s.notify(ctx, transferID, domain.TransferFailed)

		if isDomainError(err) {
			return result, err
		}

		l.Error().Err(err).Str("transfer_id", transferID).Msg("atomic step failed")

		return result, domain.ErrTransactionFailed
	}

	s.notify(ctx, transferID, domain.TransferSuccess)

	result.Status = domain.TransferSuccess

	return result, nil
}

// Finalize re-runs the atomic step for an accepted async-mode transfer.
// Workers call it after the configured delay; all state is reloaded from
// the store.
func (s *Service) Finalize(ctx context.Context, transferID string) error {
	l := zerolog.Ctx(ctx)

	t, err := s.repo.Get(ctx, transferID)
	if err != nil {
		if err == domain.ErrTransferNotFound {
			// Should not happen in production; the task carries an id
			// whose row was committed before enqueueing.
			l.Warn().Str("transfer_id", transferID).Msg("finalize: transfer not found")
			return nil
		}

		return err
	}

	if t.Status != domain.TransferProcessing {
		return nil
	}

	status := domain.TransferSuccess

	if _, err := s.repo.Apply(ctx, transferID, t.FromAccountID, t.ToAccountID, t.Amount); err != nil {
		l.Info().Err(err).Str("transfer_id", transferID).Msg("async finalization failed")
		s.markFailed(ctx, transferID)

		status = domain.TransferFailed
	}

	s.notifier.Notify(ctx, transferID, status)

	return nil
}

// Get returns the transfer after checking that the requester owns the
// source account.
func (s *Service) Get(ctx context.Context, username, transferID string) (domain.Transfer, error) {
	t, err := s.repo.Get(ctx, transferID)
	if err != nil {
		return domain.Transfer{}, err
	}

	fromAccount, err := s.accountService.Get(ctx, t.FromAccountID)
	if err != nil {
		return domain.Transfer{}, err
	}

	if fromAccount.Owner != username {
		return domain.Transfer{}, domain.ErrInvalidOwner
	}

	return t, nil
}

// List returns recent transfers sent from accounts owned by the caller.
func (s *Service) List(ctx context.Context, username string, limit int32) ([]domain.Transfer, error) {
	return s.repo.ListForOwner(ctx, username, limit)
}

// markFailed records the terminal FAILED state in its own transaction.
// Best effort: a failure here must not mask the originating error.
func (s *Service) markFailed(ctx context.Context, transferID string) {
	l := zerolog.Ctx(ctx)

	if _, err := s.repo.UpdateStatus(ctx, transferID, domain.TransferFailed); err != nil {
		l.Error().Err(err).Str("transfer_id", transferID).Msg("failed to mark transfer FAILED")
	}
}

func (s *Service) notify(ctx context.Context, transferID string, status domain.TransferStatus) {
	if s.syncNotify {
		s.notifier.Notify(ctx, transferID, status)
		return
	}

	l := zerolog.Ctx(ctx)

	go s.notifier.Notify(l.WithContext(context.Background()), transferID, status)
}

func isDomainError(err error) bool {
	switch err {
	case domain.ErrAccountNotFound,
		domain.ErrSourceAccountFrozen,
		domain.ErrDestinationAccountFrozen,
		domain.ErrSourceAccountClosed,
		domain.ErrDestinationAccountClosed,
		domain.ErrInsufficientBalance,
		domain.ErrInvalidAmount,
		domain.ErrNegativeAmount,
		domain.ErrSameAccount,
		domain.ErrDuplicateTransfer:
		return true
	}

	return false
}
