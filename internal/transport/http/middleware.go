package http

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
	"github.com/dwarvesf/icy-funding-backend/internal/view"
)

const (
	adminKeyHeader = "X-Admin-Key"

	defaultRateLimitMax    = 30
	defaultRateLimitWindow = time.Minute
)

// ipRateLimiter hands out one token bucket per client IP. Buckets idle for
// longer than the window are evicted by the cache janitor.
type ipRateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(max int, window time.Duration) *ipRateLimiter {
	if max <= 0 {
		max = defaultRateLimitMax
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	idle := 2 * window
	return &ipRateLimiter{
		limiters: cache.New(idle, idle),
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	if v, ok := l.limiters.Get(ip); ok {
		limiter := v.(*rate.Limiter)
		l.limiters.SetDefault(ip, limiter)
		return limiter
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(ip, limiter, cache.DefaultExpiration); err != nil {
		// lost the race to another request from the same ip
		if v, ok := l.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

func (l *ipRateLimiter) Allow(ip string) bool {
	return l.get(ip).Allow()
}

func rateLimit(limiter *ipRateLimiter, logger *logger.Logger, metrics *monitoring.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.Allow(ip) {
			logger.Info("[rateLimit] too many requests", map[string]string{
				"ip":   ip,
				"path": c.FullPath(),
			})
			metrics.RecordRateLimited(c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				view.CreateResponse[any](nil, errTooManyRequests, nil, "too many requests"))
			return
		}
		c.Next()
	}
}

// adminAuth rejects every request when no key is configured.
func adminAuth(key string, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(adminKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			logger.Info("[adminAuth] rejected admin request", map[string]string{
				"ip":   c.ClientIP(),
				"path": c.FullPath(),
			})
			c.AbortWithStatusJSON(http.StatusForbidden,
				view.CreateResponse[any](nil, errForbidden, nil, "forbidden"))
			return
		}
		c.Next()
	}
}
