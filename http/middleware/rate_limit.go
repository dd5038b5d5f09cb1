package middlewares

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/utils"
)

type RateLimitRule struct {
	Scope   string
	Window  time.Duration
	Max     int
	Message string
}

// RateLimiter counts requests per client IP in fixed Redis windows. Without
// Redis every limit is a no-op.
type RateLimiter struct {
	redis  *infra.RedisClient
	logger *infra.LoggerClient
}

func NewRateLimiter(redis *infra.RedisClient, logger *infra.LoggerClient) *RateLimiter {
	return &RateLimiter{redis: redis, logger: logger}
}

func (l *RateLimiter) Limit(rule RateLimitRule) gin.HandlerFunc {
	if l.redis == nil || rule.Max <= 0 || rule.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "ratelimit:" + rule.Scope + ":" + c.ClientIP()

		count, ttl, err := l.redis.IncrementWindow(ctx, key, rule.Window)
		if err != nil {
			// fail open
			l.logger.WarningWithContextf(ctx, "[RateLimit] %s counter unavailable: %v", rule.Scope, err)
			c.Next()
			return
		}

		if count > int64(rule.Max) {
			retryAfter := int64(math.Ceil(ttl.Seconds()))
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			l.logger.InfoWithContextf(ctx, "[RateLimit] %s limit hit by %s (%d/%d)", rule.Scope, c.ClientIP(), count, rule.Max)
			utils.JSON429(c, rule.Message, retryAfter)
			return
		}

		c.Next()
	}
}
