package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"typeboard/leaderboard-api/internal/metrics"
	"typeboard/leaderboard-api/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RateLimiterConfig struct {
	Store ratelimit.Store
	// Window is the length of one counting window
	Window time.Duration
	// DefaultLimit applies to every request under the group
	DefaultLimit int
	// StrictLimit applies to requests whose path contains one of StrictPaths
	StrictLimit int
	StrictPaths []string
}

// RateLimiterMiddleware caps requests per client address and endpoint class.
// When the counter store is unavailable requests are let through.
func RateLimiterMiddleware(config RateLimiterConfig) gin.HandlerFunc {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 60
	}
	if config.StrictLimit <= 0 {
		config.StrictLimit = 5
	}

	return func(c *gin.Context) {
		class, limit := "default", config.DefaultLimit
		for _, p := range config.StrictPaths {
			if strings.Contains(c.Request.URL.Path, p) {
				class, limit = "strict", config.StrictLimit
				break
			}
		}

		count, resetAt, err := config.Store.Hit(c.Request.Context(), class+":"+c.ClientIP(), config.Window)
		if err != nil {
			zap.L().Warn("Rate limiter store unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, limit-count)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > limit {
			retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}

			metrics.RateLimited.WithLabelValues(class).Inc()

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many requests",
				"retryAfter": retryAfter,
			})
			return
		}

		c.Next()
	}
}
