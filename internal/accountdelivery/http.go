// Package accountdelivery manages delivery layer of accounts.
package accountdelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mockbank/ledgersvc/internal/accountrepo"
	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/internal/middleware"
	"github.com/mockbank/ledgersvc/pkg/errorspkg"
	"github.com/mockbank/ledgersvc/pkg/jsonresponse"
	"github.com/mockbank/ledgersvc/pkg/tokenpkg"
)

// Service provides service layer interface needed by account delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package accountdelivery
type Service interface {
	ListForOwner(ctx context.Context, owner string) ([]accountrepo.AccountWithBalance, error)
	GetBalance(ctx context.Context, owner, accountID string) (domain.Balance, error)
	ListEntries(ctx context.Context, owner, accountID string, limit int32) ([]domain.Entry, error)
	UpdateStatus(ctx context.Context, owner, accountID, status string) (domain.Account, error)
}

// Handler facilitates account delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns account handler.
func NewHandler(as Service) *Handler {
	return &Handler{
		service: as,
	}
}

// List handles http request to list the caller's accounts.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	accounts, err := h.service.ListForOwner(ctx, authUsername(gctx))
	if err != nil {
		l.Info().Err(err).Send()
		respondError(gctx, err)

		return
	}

	gctx.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

type balanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// GetBalance handles http request to read an account balance.
func (h *Handler) GetBalance(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	balance, err := h.service.GetBalance(ctx, authUsername(gctx), gctx.Param("id"))
	if err != nil {
		l.Info().Err(err).Send()
		respondError(gctx, err)

		return
	}

	gctx.JSON(http.StatusOK, balanceResponse{
		AccountID: gctx.Param("id"),
		Balance:   balance.Amount,
	})
}

type listEntriesRequest struct {
	Limit int32 `form:"limit,default=50"`
}

// ListEntries handles http request to list recent ledger entries of an account.
func (h *Handler) ListEntries(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listEntriesRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.Error(err))

		return
	}

	entries, err := h.service.ListEntries(ctx, authUsername(gctx), gctx.Param("id"), req.Limit)
	if err != nil {
		l.Info().Err(err).Send()
		respondError(gctx, err)

		return
	}

	gctx.JSON(http.StatusOK, gin.H{"entries": entries})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,accountstatus"`
}

// UpdateStatus handles http request to change an account status.
func (h *Handler) UpdateStatus(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req updateStatusRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.Error(err))

		return
	}

	account, err := h.service.UpdateStatus(ctx, authUsername(gctx), gctx.Param("id"), req.Status)
	if err != nil {
		l.Info().Err(err).Send()
		respondError(gctx, err)

		return
	}

	gctx.JSON(http.StatusOK, account)
}

func authUsername(gctx *gin.Context) string {
	return gctx.MustGet(middleware.AuthorizationPayloadKey).(*tokenpkg.Payload).Username
}

func respondError(gctx *gin.Context, err error) {
	switch err {
	case domain.ErrAccountNotFound:
		gctx.JSON(http.StatusNotFound, jsonresponse.Error(err))
	case domain.ErrInvalidAccountStatus:
		gctx.JSON(http.StatusBadRequest, jsonresponse.Error(err))
	default:
		gctx.JSON(http.StatusInternalServerError, jsonresponse.Error(errorspkg.ErrInternal))
	}
}
