// internal/middleware/ratelimit_middleware.go
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"jikoni-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitMiddleware caps requests per identity per endpoint using a
// Redis fixed window. Fails open when Redis is unavailable.
func RateLimitMiddleware(client *redis.Client, logger *zap.Logger, maxRequests int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		identityID, ok := GetIdentityID(c)
		if !ok {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:api:%d:%s", identityID, c.FullPath())
		ctx := c.Request.Context()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		if count == 1 {
			client.Expire(ctx, key, window)
		}

		if count > maxRequests {
			response.Error(c, http.StatusTooManyRequests, "too many requests", nil)
			return
		}

		c.Next()
	}
}
