// Package middleware provides gin middleware for logging, authentication,
// rate limiting and idempotent replay.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mockbank/ledgersvc/pkg/jsonresponse"
	"github.com/mockbank/ledgersvc/pkg/tokenpkg"
)

const (
	// AuthorizationHeaderKey is the header carrying the bearer token.
	AuthorizationHeaderKey = "authorization"
	// AuthorizationTypeBearer is the only supported authorization type.
	AuthorizationTypeBearer = "bearer"
	// AuthorizationPayloadKey is the gin context key of the verified payload.
	AuthorizationPayloadKey = "authorization_payload"
)

// AddAuthorization issues a token and sets it on the request. Test helper.
func AddAuthorization(
	t *testing.T,
	request *http.Request,
	tokenMaker tokenpkg.Maker,
	authorizationType string,
	username string,
	duration time.Duration,
) {
	token, _, err := tokenMaker.CreateToken(username, duration)
	require.NoError(t, err)

	authorizationHeader := fmt.Sprintf("%s %s", authorizationType, token)
	request.Header.Set(AuthorizationHeaderKey, authorizationHeader)
}

// Auth verifies the bearer token and stores its payload in the gin context.
func Auth(tokenMaker tokenpkg.Maker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authorizationHeader := ctx.GetHeader(AuthorizationHeaderKey)
		if len(authorizationHeader) == 0 {
			err := errors.New("authorization header is not provided")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, jsonresponse.Error(err))
			return
		}

		fields := strings.Fields(authorizationHeader)
		if len(fields) < 2 {
			err := errors.New("invalid authorization header format")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, jsonresponse.Error(err))
			return
		}

		authorizationType := strings.ToLower(fields[0])
		if authorizationType != AuthorizationTypeBearer {
			err := fmt.Errorf("unsupported authorization type %s", authorizationType)
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, jsonresponse.Error(err))
			return
		}

		accessToken := fields[1]
		payload, err := tokenMaker.VerifyToken(accessToken)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, jsonresponse.Error(err))
			return
		}

		ctx.Set(AuthorizationPayloadKey, payload)
		ctx.Next()
	}
}
