package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/config"
	"github.com/GriffinCanCode/ambience-chat/internal/ratelimit"
)

// ClientIdleTimeout is how long an idle client's bucket is kept
const ClientIdleTimeout = 10 * time.Minute

// RateLimit creates a per-IP rate limiting middleware backed by limiter.
// The ActionAPI rule is installed from cfg; a disabled config passes every
// request through.
func RateLimit(limiter *ratelimit.Limiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	limiter.SetRule(ratelimit.ActionAPI, ratelimit.PerSecond(cfg.RequestsPerSecond, cfg.Burst))

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if limiter.Allow(ratelimit.ActionAPI, ip) {
			c.Next()
			return
		}

		retry := limiter.Status(ratelimit.ActionAPI, ip).RetryAfter
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
		})
	}
}

// RunCleanup forgets idle buckets every interval until ctx is done
func RunCleanup(ctx context.Context, limiter *ratelimit.Limiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup(ClientIdleTimeout)
		}
	}
}
