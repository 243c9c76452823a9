package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/pashuvlogs/home-app/internal/domain"
)

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

// RateLimiter throttles requests per client IP with a token bucket. Idle
// clients age out of a bounded LRU.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter from cfg.
func NewRateLimiter(cfg domain.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, clientIdleTTL),
	}
}

func (rl *RateLimiter) limiterFor(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters.Get(clientIP); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Add(clientIP, l)
	return l
}

// Middleware responds 429 once a client exceeds its budget.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			Abort(c, http.StatusTooManyRequests, domain.CodeRateLimit, "Rate limit exceeded")
			return
		}
		c.Next()
	}
}
