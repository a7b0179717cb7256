package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goodies-platform/internal/redis"
	"goodies-platform/internal/transport/httpdto"
	"goodies-platform/pkg/logger"
)

type AdminTokenLimiter interface {
	AllowAdminToken(ctx context.Context, ip string) (*redis.RateLimitResult, error)
}

// AdminTokenRateLimit throttles admin key guesses per client IP. When the
// limiter backend fails the request is let through and the error logged.
func AdminTokenRateLimit(limiter AdminTokenLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowAdminToken(c.Request.Context(), c.ClientIP())
		if err != nil {
			if l != nil {
				l.Warn(c.Request.Context(), "admin token rate limit check failed", zap.Error(err))
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			return
		}
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
