package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitRouter(limiter RateLimiter, cfg RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(limiter, cfg))
	r.GET("/v1/entities", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestTokenBucketAllowsBurst(t *testing.T) {
	l := NewTokenBucketLimiter(1, 3, 0)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("client-a")
		require.True(t, allowed, "request %d within burst should pass", i)
	}

	allowed, info := l.Allow("client-a")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, 3, info.Limit)
}

func TestTokenBucketRefills(t *testing.T) {
	l := NewTokenBucketLimiter(100, 1, 0)
	defer l.Stop()

	allowed, _ := l.Allow("client-a")
	require.True(t, allowed)
	allowed, _ = l.Allow("client-a")
	require.False(t, allowed)

	// At 100 tokens/s a new token arrives within 10ms.
	time.Sleep(25 * time.Millisecond)
	allowed, _ = l.Allow("client-a")
	assert.True(t, allowed)
}

func TestTokenBucketIsolatesKeys(t *testing.T) {
	l := NewTokenBucketLimiter(1, 1, 0)
	defer l.Stop()

	allowed, _ := l.Allow("client-a")
	require.True(t, allowed)

	allowed, _ = l.Allow("client-b")
	assert.True(t, allowed, "exhausting one key must not affect another")
	assert.Equal(t, 2, l.BucketCount())
}

func TestTokenBucketCleanupRemovesIdleBuckets(t *testing.T) {
	l := NewTokenBucketLimiter(1000, 1, 0)
	defer l.Stop()

	l.Allow("client-a")
	require.Equal(t, 1, l.BucketCount())

	// Let the bucket refill to full, then reclaim it.
	time.Sleep(5 * time.Millisecond)
	l.Allow("client-b")
	time.Sleep(5 * time.Millisecond)
	l.cleanup()

	assert.Equal(t, 0, l.BucketCount())
}

func TestRateLimitSetsHeaders(t *testing.T) {
	l := NewTokenBucketLimiter(10, 5, 0)
	defer l.Stop()
	r := rateLimitRouter(l, DefaultRateLimitConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/entities", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	l := NewTokenBucketLimiter(0.1, 1, 0)
	defer l.Stop()
	r := rateLimitRouter(l, DefaultRateLimitConfig())

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/v1/entities", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/v1/entities", nil))

	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")
}

func TestRateLimitSkipsHealthEndpoints(t *testing.T) {
	l := NewTokenBucketLimiter(0.1, 1, 0)
	defer l.Stop()
	r := rateLimitRouter(l, DefaultRateLimitConfig())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 0, l.BucketCount())
}

func TestRateLimitKeysByForwardedFor(t *testing.T) {
	l := NewTokenBucketLimiter(0.1, 1, 0)
	defer l.Stop()
	r := rateLimitRouter(l, DefaultRateLimitConfig())

	reqA := httptest.NewRequest(http.MethodGet, "/v1/entities", nil)
	reqA.Header.Set("X-Forwarded-For", "10.0.0.1")
	reqB := httptest.NewRequest(http.MethodGet, "/v1/entities", nil)
	reqB.Header.Set("X-Forwarded-For", "10.0.0.2")

	wA := httptest.NewRecorder()
	r.ServeHTTP(wA, reqA)
	wB := httptest.NewRecorder()
	r.ServeHTTP(wB, reqB)

	assert.Equal(t, http.StatusOK, wA.Code)
	assert.Equal(t, http.StatusOK, wB.Code)
}
