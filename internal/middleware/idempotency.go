package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travel/internal/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	idempotencyTTL    = 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can hold its key.
	inFlightTTL = time.Minute
)

// IdempotencyStore persists replayable responses and in-flight markers.
type IdempotencyStore interface {
	GetResponse(ctx context.Context, key string) (*redis.StoredResponse, error)
	SetResponse(ctx context.Context, key string, resp *redis.StoredResponse, ttl time.Duration) error
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

var _ IdempotencyStore = (*redis.IdempotencyStore)(nil)

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response when a mutating request
// repeats an Idempotency-Key on the same route. A request arriving while the
// first one with its key is still running gets 409. Server errors, including
// gateway failures, are not stored so the client can retry them.
// A nil store disables the middleware.
func IdempotencyMiddleware(store IdempotencyStore, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if store == nil || !isMutating(c.Request.Method) {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storeKey := c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		cached, err := store.GetResponse(ctx, storeKey)
		if err != nil {
			// Redis trouble must not block the request.
			logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if cached != nil {
			replay(c, cached)
			return
		}

		reserved, err := store.Reserve(ctx, storeKey, inFlightTTL)
		if err != nil {
			logger.Warn("idempotency reserve failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			// The holder may have finished between the lookup and the reserve.
			if cached, err := store.GetResponse(ctx, storeKey); err == nil && cached != nil {
				replay(c, cached)
				return
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"detail": "A request with this Idempotency-Key is already in progress.",
			})
			return
		}

		saveCtx := context.WithoutCancel(ctx)
		defer func() {
			if err := store.Release(saveCtx, storeKey); err != nil {
				logger.Warn("idempotency release failed", zap.String("key", key), zap.Error(err))
			}
		}()

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusInternalServerError {
			return
		}

		response := redis.StoredResponse{
			StatusCode:  status,
			Body:        w.body.Bytes(),
			ContentType: c.Writer.Header().Get("Content-Type"),
		}
		if err := store.SetResponse(saveCtx, storeKey, &response, idempotencyTTL); err != nil {
			logger.Warn("idempotency store failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func replay(c *gin.Context, resp *redis.StoredResponse) {
	c.Header(replayedHeader, "true")
	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
	c.Abort()
}

func isMutating(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}
