package middleware

import (
	"net/http"
	"strconv"

	"advisor-chat/internal/redis"
	"advisor-chat/internal/services"
	"advisor-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// MessageRateLimitMiddleware throttles message sends per user. Apply after
// the auth middleware.
func MessageRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return rateLimitMiddleware(limiter, func(c *gin.Context, userID string) (*redis.RateLimitResult, error) {
		return limiter.AllowMessage(c.Request.Context(), userID)
	}, "message rate limit exceeded")
}

// SearchRateLimitMiddleware throttles search queries per user.
func SearchRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return rateLimitMiddleware(limiter, func(c *gin.Context, userID string) (*redis.RateLimitResult, error) {
		return limiter.AllowSearch(c.Request.Context(), userID)
	}, "search rate limit exceeded")
}

func rateLimitMiddleware(
	limiter *redis.RateLimiter,
	allow func(c *gin.Context, userID string) (*redis.RateLimitResult, error),
	exceededMsg string,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			// Auth middleware rejects unauthenticated requests.
			c.Next()
			return
		}

		result, err := allow(c, userID.String())
		if err != nil {
			// Redis trouble must not take messaging down with it.
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(exceededMsg, "RATE_LIMITED"))
			c.Abort()
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
