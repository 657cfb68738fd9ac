// Package userdelivery manages delivery layer of users.
package userdelivery

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/pkg/errorspkg"
	"github.com/mockbank/ledgersvc/pkg/jsonresponse"
	"github.com/mockbank/ledgersvc/pkg/tokenpkg"
)

// Service provides service layer interface needed by user delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package userdelivery
type Service interface {
	CheckPassword(ctx context.Context, username, password string) (domain.User, error)
}

// Handler facilitates user delivery layer logic.
type Handler struct {
	service             Service
	tokenMaker          tokenpkg.Maker
	accessTokenDuration time.Duration
}

// NewHandler returns user handler.
func NewHandler(us Service, tm tokenpkg.Maker, accessTokenDuration time.Duration) *Handler {
	return &Handler{
		service:             us,
		tokenMaker:          tm,
		accessTokenDuration: accessTokenDuration,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,alphanum"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login handles http request to authenticate a user and issue a token.
func (h *Handler) Login(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req loginRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.Error(err))

		return
	}

	user, err := h.service.CheckPassword(ctx, req.Username, req.Password)
	if err != nil {
		if err == domain.ErrWrongPassword {
			gctx.JSON(http.StatusUnauthorized, jsonresponse.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, jsonresponse.Error(errorspkg.ErrInternal))

		return
	}

	accessToken, _, err := h.tokenMaker.CreateToken(user.Username, h.accessTokenDuration)
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, jsonresponse.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, loginResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
	})
}
