package middleware

import (
	"bytes"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle/internal/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a mutating request repeats
// its Idempotency-Key. Keys are scoped to the caller and the route, so two
// users or two endpoints never share a reply. It must run after Auth.
func Idempotency(cache redis.ResponseCacheInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch && c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := ActorFrom(c).UserID + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		cached, err := cache.GetResponse(ctx, cacheKey)
		if err != nil {
			log.Printf("[IDEMPOTENCY] lookup of %s failed, processing normally: %v", cacheKey, err)
			c.Next()
			return
		}
		if cached != nil {
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			contentType := cached.Headers.Get("Content-Type")
			if contentType == "" {
				contentType = "application/json"
			}
			c.Header("Idempotent-Replay", "true")
			c.Data(cached.StatusCode, contentType, cached.Body)
			c.Abort()
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Server errors are retryable, so they are never stored.
		if status := c.Writer.Status(); status >= 200 && status < 500 {
			resp := &redis.CachedResponse{
				StatusCode: status,
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := cache.SetResponse(ctx, cacheKey, resp, idempotencyTTL); err != nil {
				log.Printf("[IDEMPOTENCY] store of %s failed: %v", cacheKey, err)
			}
		}
	}
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	for _, name := range []string{"Content-Type", "Content-Disposition"} {
		if v := c.Writer.Header().Get(name); v != "" {
			headers.Set(name, v)
		}
	}
	return headers
}
