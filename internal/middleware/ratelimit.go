package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/skyvault/skyvault/internal/pkg"
)

// RateLimitConfig configures the fixed-window limiter.
type RateLimitConfig struct {
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
	Limit   int           `json:"limit" mapstructure:"limit"`
	Window  time.Duration `json:"window" mapstructure:"window"`
}

// RateLimit throttles requests per client using a fixed window counter in
// Redis. Authenticated requests are counted per user, anonymous ones per
// client IP. When Redis is unreachable requests pass through so the API
// does not fail closed on a cache outage.
func RateLimit(rdb *redis.Client, config RateLimitConfig, logger zerolog.Logger) gin.HandlerFunc {
	if !config.Enabled || rdb == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if config.Limit <= 0 {
		config.Limit = 100
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	log := logger.With().Str("middleware", "ratelimit").Logger()

	return func(c *gin.Context) {
		subject := c.ClientIP()
		if id, ok := UserID(c); ok {
			subject = id.Hex()
		}
		window := time.Now().Unix() / int64(config.Window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%d", subject, window)

		count, err := rdb.Incr(c.Request.Context(), key).Result()
		if err != nil {
			log.Warn().Err(err).Msg("rate limit store unavailable, allowing request")
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(c.Request.Context(), key, config.Window)
		}

		remaining := int64(config.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(config.Limit) {
			pkg.HandleError(c, pkg.ErrRateLimitExceeded)
			c.Abort()
			return
		}
		c.Next()
	}
}
