package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/pkg/kvpkg"
)

// IdempotencyKeyHeader is the caller-supplied key scoping a logical request.
const IdempotencyKeyHeader = "Idempotency-Key"

type idempotencyRecord struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

// bodyRecorder captures the response bytes while they are written.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Idempotency replays previously recorded responses for requests carrying
// the same idempotency key. Idempotency is opt-in per request: without the
// header the request is processed normally. On a hit the stored response is
// replayed verbatim and the handler never runs. The record is written only
// after the wrapped handler completes; store failures are swallowed, the
// cache is best-effort and never blocks the primary response.
func Idempotency(kv kvpkg.Store, ttl time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := ctx.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			ctx.Next()
			return
		}

		l := zerolog.Ctx(ctx.Request.Context())

		storeKey := fmt.Sprintf("idem:%s:%s:%s", callerIdentity(ctx), ctx.Request.URL.Path, key)

		cached, err := kv.Get(ctx.Request.Context(), storeKey)
		if err == nil {
			var record idempotencyRecord
			if decodeErr := json.Unmarshal([]byte(cached), &record); decodeErr != nil {
				l.Warn().Err(decodeErr).Msg("malformed idempotency record dropped")
			} else {
				ctx.Data(record.StatusCode, "application/json; charset=utf-8", record.Body)
				ctx.Abort()

				return
			}
		} else if err != kvpkg.ErrNotFound {
			l.Error().Err(err).Msg("idempotency lookup failed")
		}

		recorder := &bodyRecorder{ResponseWriter: ctx.Writer}
		ctx.Writer = recorder

		ctx.Next()

		record, err := json.Marshal(idempotencyRecord{
			StatusCode: recorder.Status(),
			Body:       recorder.body.Bytes(),
		})
		if err != nil {
			l.Error().Err(err).Msg("idempotency record not encoded")
			return
		}

		if err := kv.SetEx(ctx.Request.Context(), storeKey, string(record), ttl); err != nil {
			l.Error().Err(err).Msg("idempotency record not stored")
		}
	}
}
