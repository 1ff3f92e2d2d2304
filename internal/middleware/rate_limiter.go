package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiterConfig defines rate limiting rules
type RateLimiterConfig struct {
	MaxRequests int           // Maximum requests allowed in the window
	Window      time.Duration // Counting window
	BlockTime   time.Duration // How long a client stays blocked after exceeding the limit
}

// RateLimiter provides IP-based fixed-window rate limiting using Redis
type RateLimiter struct {
	redis  *redis.Client
	ctx    context.Context
	config RateLimiterConfig
	prefix string
}

// NewRateLimiter creates a new rate limiter instance.
// prefix separates counters of limiters sharing one Redis.
func NewRateLimiter(redisClient *redis.Client, prefix string, config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		ctx:    context.Background(),
		config: config,
		prefix: prefix,
	}
}

// Middleware returns a Gin middleware function for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		allowed, retryAfter, err := rl.CheckLimit(clientIP)
		if err != nil {
			// Fail open: a Redis outage must not lock users out of login
			logger.Log.Warn("Rate limiter unavailable, allowing request",
				zap.String("ip", clientIP),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !allowed {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			logger.Log.Warn("Rate limit exceeded",
				zap.String("ip", clientIP),
				zap.String("path", c.FullPath()),
				zap.Int("retry_after", seconds),
			)
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"retry_after": seconds,
			})
			return
		}

		c.Next()
	}
}

// CheckLimit counts a request for ip.
// Returns: (allowed bool, retryAfter duration, error)
func (rl *RateLimiter) CheckLimit(ip string) (bool, time.Duration, error) {
	blockKey := rl.key("block", ip)

	// A blocked client is refused until the block key expires
	ttl, err := rl.redis.TTL(rl.ctx, blockKey).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl > 0 {
		return false, ttl, nil
	}

	countKey := rl.key("count", ip)

	// INCR then EXPIRE on the first hit gives a fixed window per client
	count, err := rl.redis.Incr(rl.ctx, countKey).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := rl.redis.Expire(rl.ctx, countKey, rl.config.Window).Err(); err != nil {
			return false, 0, err
		}
	}

	if count <= int64(rl.config.MaxRequests) {
		return true, 0, nil
	}

	if rl.config.BlockTime > 0 {
		if err := rl.redis.Set(rl.ctx, blockKey, 1, rl.config.BlockTime).Err(); err != nil {
			return false, 0, err
		}
		return false, rl.config.BlockTime, nil
	}

	ttl, err = rl.redis.TTL(rl.ctx, countKey).Result()
	if err != nil || ttl <= 0 {
		ttl = rl.config.Window
	}
	return false, ttl, nil
}

// Reset clears the counters and any block for ip
func (rl *RateLimiter) Reset(ip string) error {
	return rl.redis.Del(rl.ctx, rl.key("count", ip), rl.key("block", ip)).Err()
}

func (rl *RateLimiter) key(kind, ip string) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", rl.prefix, kind, ip)
}
