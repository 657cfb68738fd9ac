// Package transferdelivery manages delivery layer of transfers.
package transferdelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/internal/middleware"
	"github.com/mockbank/ledgersvc/pkg/errorspkg"
	"github.com/mockbank/ledgersvc/pkg/jsonresponse"
	"github.com/mockbank/ledgersvc/pkg/tokenpkg"
)

// Service provides service layer interface needed by transfer delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package transferdelivery
type Service interface {
	Create(ctx context.Context, fromUsername, requestID string, arg domain.CreateTransferParams) (domain.CreateTransferResult, error)
	Get(ctx context.Context, username, transferID string) (domain.Transfer, error)
	List(ctx context.Context, username string, limit int32) ([]domain.Transfer, error)
}

// Handler facilitates transfer delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns transfer handler.
func NewHandler(ts Service) *Handler {
	return &Handler{
		service: ts,
	}
}

type createRequest struct {
	FromAcct string          `json:"from_acct" binding:"required"`
	ToAcct   string          `json:"to_acct" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Mode     string          `json:"mode" binding:"omitempty,oneof=sync async"`
}

type createResponse struct {
	Status     string `json:"status"`
	TransferID string `json:"transfer_id"`
}

// Create handles http request to create a transfer between two accounts.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.Error(err))

		return
	}

	authPayload := gctx.MustGet(middleware.AuthorizationPayloadKey).(*tokenpkg.Payload)

	arg := domain.CreateTransferParams{
		FromAccountID:  req.FromAcct,
		ToAccountID:    req.ToAcct,
		Amount:         req.Amount,
		Mode:           req.Mode,
		IdempotencyKey: gctx.GetHeader(middleware.IdempotencyKeyHeader),
	}

	requestID := gctx.GetHeader(middleware.RequestIDHeader)

	result, err := h.service.Create(ctx, authPayload.Username, requestID, arg)
	if err != nil {
		l.Info().Err(err).Send()
		respondError(gctx, err)

		return
	}

	status := "success"
	if result.Accepted {
		status = "accepted"
	}

	gctx.JSON(http.StatusOK, createResponse{
		Status:     status,
		TransferID: result.TransferID,
	})
}

// Get handles http request to view a single transfer.
func (h *Handler) Get(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	transfer, err := h.service.Get(ctx, authUsername(gctx), gctx.Param("id"))
	if err != nil {
		l.Info().Err(err).Send()
		respondError(gctx, err)

		return
	}

	gctx.JSON(http.StatusOK, transfer)
}

type listRequest struct {
	Limit int32 `form:"limit,default=50" binding:"min=1,max=200"`
}

type listResponse struct {
	Transfers []domain.Transfer `json:"transfers"`
}

// List handles http request to view recent transfers of the caller.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.Error(err))

		return
	}

	transfers, err := h.service.List(ctx, authUsername(gctx), req.Limit)
	if err != nil {
		l.Info().Err(err).Send()
		respondError(gctx, err)

		return
	}

	gctx.JSON(http.StatusOK, listResponse{Transfers: transfers})
}

func authUsername(gctx *gin.Context) string {
	return gctx.MustGet(middleware.AuthorizationPayloadKey).(*tokenpkg.Payload).Username
}

func statusCode(err error) int {
	switch err {
	case domain.ErrNegativeAmount,
		domain.ErrInvalidAmount,
		domain.ErrSameAccount,
		domain.ErrInsufficientBalance,
		domain.ErrDuplicateTransfer,
		domain.ErrTransactionFailed:
		return http.StatusBadRequest
	case domain.ErrSourceAccountFrozen,
		domain.ErrDestinationAccountFrozen,
		domain.ErrSourceAccountClosed,
		domain.ErrDestinationAccountClosed:
		return http.StatusForbidden
	case domain.ErrInvalidOwner:
		return http.StatusForbidden
	case domain.ErrAccountNotFound, domain.ErrTransferNotFound:
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}

func respondError(gctx *gin.Context, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		err = errorspkg.ErrInternal
	}

	gctx.JSON(code, jsonresponse.Error(err))
}
