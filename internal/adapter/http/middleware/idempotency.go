package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"adwallet/internal/core/ports"
	"adwallet/pkg/apperror"
	"adwallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	HeaderIdempotencyKey  = "Idempotency-Key"
	HeaderIdempotentReply = "Idempotent-Replayed"

	// CtxIdempotentReplay is set when the response was served from the cache.
	CtxIdempotentReplay = "idempotent_replay"

	DefaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKeyLen  = 64
)

// storedResponse is what gets cached for a completed request.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
}

// captureWriter tees the response body so it can be cached after the handler ran.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped per caller and path. Only 2xx responses are stored, so a
// failed request can be retried with the same key. Requests without the
// header pass through, and a cache outage degrades to no deduplication.
func Idempotency(cache ports.IdempotencyCache, ttl time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			response.Error(c, apperror.Validation("Idempotency-Key must be at most 64 characters"))
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("request body too large or unreadable"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sum := sha256.Sum256(append([]byte(c.Request.Method+" "), body...))
		fingerprint := hex.EncodeToString(sum[:])
		cacheKey := extractIdentifier(c) + ":" + c.Request.URL.Path + ":" + key

		ctx := c.Request.Context()
		if raw, err := cache.Get(ctx, cacheKey); err != nil {
			log.Warn().Err(err).Msg("idempotency lookup failed, processing request (degraded mode)")
		} else if raw != nil {
			var stored storedResponse
			if err := json.Unmarshal(raw, &stored); err == nil {
				if stored.Fingerprint != fingerprint {
					response.Error(c, apperror.ErrIdempotencyConflict())
					c.Abort()
					return
				}
				c.Set(CtxIdempotentReplay, true)
				c.Header(HeaderIdempotentReply, "true")
				c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
				c.Abort()
				return
			}
			log.Warn().Str("key", cacheKey).Msg("discarding unreadable idempotency entry")
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		raw, err := json.Marshal(storedResponse{Fingerprint: fingerprint, Status: status, Body: w.buf.Bytes()})
		if err != nil {
			return
		}
		if err := cache.Set(ctx, cacheKey, raw, ttl); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("failed to store idempotent response")
		}
	}
}
