package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pixgo-gateway/internal/http/handlers/shared"
	"github.com/pixgo-gateway/internal/http/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

// RateLimitKeyFunc builds the limiter key for a request
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule fixed window rule
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
}

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware redis fixed window limiter. Without redis, or when
// redis fails, requests pass through.
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = fmt.Sprintf("%s:%s", rule.Prefix, key)
		}

		result, err := rateLimitScript.Run(c.Request.Context(), client, []string{key}, rule.WindowSeconds).Result()
		if err != nil {
			shared.RequestLog(c).Warnw("rate_limit_unavailable", "key", key, "error", err)
			c.Next()
			return
		}
		count, ttlSeconds, ok := parseRateLimitResult(result)
		if !ok {
			shared.RequestLog(c).Warnw("rate_limit_result_invalid", "key", key, "result", result)
			c.Next()
			return
		}
		if count > int64(rule.MaxRequests) {
			waitSeconds := int(ttlSeconds)
			if waitSeconds < 1 {
				waitSeconds = rule.WindowSeconds
			}
			c.Header("Retry-After", cast.ToString(waitSeconds))
			response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited,
				fmt.Sprintf("Too many requests, retry in %d seconds", waitSeconds))
			c.Abort()
			return
		}

		c.Next()
	}
}

// KeyByIP client IP as the limiter key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

func parseRateLimitResult(result interface{}) (int64, int64, bool) {
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, false
	}
	count, err := cast.ToInt64E(values[0])
	if err != nil {
		return 0, 0, false
	}
	ttl, _ := cast.ToInt64E(values[1])
	return count, ttl, true
}
