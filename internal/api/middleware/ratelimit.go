package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Demr1on/batmap-app/internal/observability/metrics"
)

// Rate limiter bookkeeping.
const (
	// clientExpiry drops the bucket of a client idle for this long.
	clientExpiry = 5 * time.Minute
	// clientCleanupInterval is how often idle buckets are purged.
	clientCleanupInterval = 10 * time.Minute
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	clients *cache.Cache
	metrics *metrics.HTTPMetrics
}

// NewRateLimiter allows perSecond requests per client with the given burst.
// A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int, m *metrics.HTTPMetrics) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limit:   limit,
		burst:   max(burst, 1),
		clients: cache.New(clientExpiry, clientCleanupInterval),
		metrics: m,
	}
}

// Allow takes a token from the bucket of key.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit == rate.Inf {
		return true
	}

	rl.mu.Lock()
	var limiter *rate.Limiter
	if v, ok := rl.clients.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
	}
	// Refresh the expiry on every request so active clients keep their bucket.
	rl.clients.Set(key, limiter, cache.DefaultExpiration)
	rl.mu.Unlock()

	return limiter.Allow()
}

// Middleware rejects requests over the limit by calling deny.
func (rl *RateLimiter) Middleware(deny echo.HandlerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rl.Allow(c.RealIP()) {
				return next(c)
			}
			if rl.metrics != nil {
				rl.metrics.RecordRateLimited()
			}
			return deny(c)
		}
	}
}
