package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustion(t *testing.T) {
	l := NewIPRateLimiter(3, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.allow("1.2.3.4"), "request %d should pass", i)
	}
	assert.False(t, l.allow("1.2.3.4"))

	// other keys have their own bucket
	assert.True(t, l.allow("5.6.7.8"))
}

func TestTokenBucketRefill(t *testing.T) {
	l := NewIPRateLimiter(2, 60)
	current := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	assert.True(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))

	current = current.Add(2 * time.Second)
	assert.True(t, l.allow("1.2.3.4"), "2s at 60/min refills 2 tokens")

	// refill never exceeds capacity
	current = current.Add(time.Hour)
	assert.True(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))
}

func TestTokenBucketDefaultCapacity(t *testing.T) {
	l := NewIPRateLimiter(0, 10)
	assert.Equal(t, 10, l.capacity)
}

func TestSkipPathsBypassLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewIPRateLimiter(1, 1, "/healthz").GinMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/work", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(path string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get("/healthz"), "probe %d", i)
	}
	assert.Equal(t, http.StatusOK, get("/work"))
	assert.Equal(t, http.StatusTooManyRequests, get("/work"))
}
