package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/pkg/kvpkg"
)

// Route categories with independently configured ceilings.
const (
	RouteBalance  = "balance"
	RouteTransfer = "transfer"
)

// Window expiry runs slightly longer than the window itself to bound memory
// without cutting a live window short.
const (
	rateLimitWindow = time.Minute
	rateLimitExpiry = 70 * time.Second
)

// Limiter enforces fixed-window per-caller rate limits backed by the shared
// key-value store, so every worker instance observes the same counters.
type Limiter struct {
	kv  kvpkg.Store
	now func() time.Time
}

// NewLimiter returns a Limiter over the given store.
func NewLimiter(kv kvpkg.Store) *Limiter {
	return &Limiter{
		kv:  kv,
		now: time.Now,
	}
}

type rateLimitResponse struct {
	Error       string `json:"error"`
	LimitPerMin int    `json:"limit_per_min"`
	Route       string `json:"route"`
}

// Limit returns middleware rejecting requests beyond perMin per caller per
// 60-second window for the given route category. Registered before the
// idempotency middleware, so replayed requests still consume budget.
func (rl *Limiter) Limit(route string, perMin int) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		l := zerolog.Ctx(ctx.Request.Context())

		bucket := rl.now().Unix() / int64(rateLimitWindow/time.Second)
		key := fmt.Sprintf("rl:%s:%s:%d", callerIdentity(ctx), route, bucket)

		count, err := rl.kv.Incr(ctx.Request.Context(), key)
		if err != nil {
			// The limiter must not take the primary path down with it.
			l.Error().Err(err).Msg("rate limit counter unavailable")
			ctx.Next()

			return
		}

		if count == 1 {
			if err := rl.kv.Expire(ctx.Request.Context(), key, rateLimitExpiry); err != nil {
				l.Error().Err(err).Msg("rate limit expiry not set")
			}
		}

		if count > int64(perMin) {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, rateLimitResponse{
				Error:       "too many requests",
				LimitPerMin: perMin,
				Route:       route,
			})

			return
		}

		ctx.Next()
	}
}

// callerIdentity keys counters by an obfuscated token tail for
// authenticated callers and by remote address otherwise.
func callerIdentity(ctx *gin.Context) string {
	auth := ctx.GetHeader(AuthorizationHeaderKey)
	if strings.HasPrefix(strings.ToLower(auth), AuthorizationTypeBearer+" ") {
		if len(auth) > 24 {
			return auth[len(auth)-24:]
		}

		return auth
	}

	return ctx.ClientIP()
}
