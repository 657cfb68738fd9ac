// Package webhookdelivery provides the inbound webhook sink used as the
// default notification receiver.
package webhookdelivery

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/pkg/jsonresponse"
)

// Handler echoes received transfer-status notifications.
type Handler struct{}

// NewHandler returns webhook handler.
func NewHandler() *Handler {
	return &Handler{}
}

// TransferStatus handles inbound transfer-status notifications.
func (h *Handler) TransferStatus(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var payload map[string]any
	if err := gctx.ShouldBindJSON(&payload); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.Error(err))

		return
	}

	l.Info().Interface("payload", payload).Msg("transfer status notification received")

	gctx.JSON(http.StatusOK, gin.H{"received": true, "payload": payload})
}
