package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter is an in-memory token bucket keyed by client IP; for a
// multi-replica deployment swap to Redis. Probe endpoints can be
// exempted so health checks and metric scrapes never consume tokens.
type IPRateLimiter struct {
	capacity int
	rate     int
	skip     map[string]struct{}
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewIPRateLimiter creates a limiter holding capacity tokens per IP,
// refilled at perMinute. Requests to skipPaths bypass the limiter.
func NewIPRateLimiter(capacity, perMinute int, skipPaths ...string) *IPRateLimiter {
	if capacity <= 0 {
		capacity = perMinute
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &IPRateLimiter{
		capacity: capacity,
		rate:     perMinute,
		skip:     skip,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware returns a gin handler enforcing per-IP limits.
func (l *IPRateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := l.skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *IPRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := l.now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
