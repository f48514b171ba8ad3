package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"meetapp/internal/dto"
)

const (
	actorKey        = "actor_id"
	requestIDKey    = "request_id"
	actorHeader     = "X-User-ID"
	requestIDHeader = "X-Request-ID"
)

func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		zlog.Logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("request handled")
	}
}

// RequestID tags every request with an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// Auth reads the authenticated user id set by the upstream identity provider.
// Credentials are verified before requests reach this service, so the id is
// trusted as-is.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(actorHeader)
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			dto.ForbiddenError(c)
			c.Abort()
			return
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

// ActorID returns the authenticated user id placed by Auth.
func ActorID(c *ginext.Context) (int, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
