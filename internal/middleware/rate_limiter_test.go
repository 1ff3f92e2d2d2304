package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRateLimiter creates a rate limiter with miniredis for testing
func setupTestRateLimiter(tb testing.TB, maxRequests int, window, blockTime time.Duration) (*RateLimiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(tb)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	tb.Cleanup(func() { client.Close() })

	rl := NewRateLimiter(client, "auth", RateLimiterConfig{
		MaxRequests: maxRequests,
		Window:      window,
		BlockTime:   blockTime,
	})

	return rl, mr
}

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	router.POST("/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	return router
}

func doLogin(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestRateLimiter_AllowsRequestsUnderLimit tests that requests under the limit are allowed
func TestRateLimiter_AllowsRequestsUnderLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, _ := setupTestRateLimiter(t, 5, time.Minute, 5*time.Minute)
	router := newLimitedRouter(rl)

	for i := 0; i < 5; i++ {
		w := doLogin(router, "192.168.1.1")
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}
}

// TestRateLimiter_BlocksRequestsOverLimit tests that requests over the limit are blocked
func TestRateLimiter_BlocksRequestsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, _ := setupTestRateLimiter(t, 5, time.Minute, 5*time.Minute)
	router := newLimitedRouter(rl)

	for i := 0; i < 5; i++ {
		w := doLogin(router, "192.168.1.1")
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	w := doLogin(router, "192.168.1.1")

	assert.Equal(t, http.StatusTooManyRequests, w.Code, "6th request should be rate limited")
	assert.Equal(t, "300", w.Header().Get("Retry-After"), "blocked for the full block time")
	assert.Contains(t, w.Body.String(), "Too many requests")
}

// TestRateLimiter_DifferentIPsIndependent tests that different IPs have independent limits
func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, _ := setupTestRateLimiter(t, 3, time.Minute, 5*time.Minute)
	router := newLimitedRouter(rl)

	for i := 0; i < 3; i++ {
		w := doLogin(router, "192.168.1.1")
		assert.Equal(t, http.StatusOK, w.Code, "IP1 request %d should succeed", i+1)
	}

	for i := 0; i < 3; i++ {
		w := doLogin(router, "192.168.1.2")
		assert.Equal(t, http.StatusOK, w.Code, "IP2 request %d should succeed", i+1)
	}

	w := doLogin(router, "192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "IP1 4th request should be rate limited")
}

// TestRateLimiter_CheckLimit tests the CheckLimit method directly
func TestRateLimiter_CheckLimit(t *testing.T) {
	rl, _ := setupTestRateLimiter(t, 3, time.Minute, 0)

	ip := "192.168.1.100"

	for i := 0; i < 3; i++ {
		allowed, _, err := rl.CheckLimit(ip)
		require.NoError(t, err)
		assert.True(t, allowed, "Request %d should be allowed", i+1)
	}

	allowed, retryAfter, err := rl.CheckLimit(ip)
	require.NoError(t, err)
	assert.False(t, allowed, "4th request should be denied")
	assert.Greater(t, retryAfter, time.Duration(0), "Should have retry-after duration")
	assert.LessOrEqual(t, retryAfter, time.Minute, "without a block the window decides")
}

// TestRateLimiter_WindowExpiry tests that the limit resets after the window expires
func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl, mr := setupTestRateLimiter(t, 2, time.Second, 0)

	ip := "192.168.1.100"

	for i := 0; i < 2; i++ {
		allowed, _, err := rl.CheckLimit(ip)
		require.NoError(t, err)
		assert.True(t, allowed, "Request %d should be allowed", i+1)
	}

	allowed, _, err := rl.CheckLimit(ip)
	require.NoError(t, err)
	assert.False(t, allowed, "3rd request should be denied")

	mr.FastForward(2 * time.Second)

	allowed, _, err = rl.CheckLimit(ip)
	require.NoError(t, err)
	assert.True(t, allowed, "Request should be allowed after window expires")
}

// TestRateLimiter_BlockOutlastsWindow tests that a blocked client stays blocked after the window resets
func TestRateLimiter_BlockOutlastsWindow(t *testing.T) {
	rl, mr := setupTestRateLimiter(t, 1, time.Second, time.Minute)

	ip := "192.168.1.100"

	allowed, _, err := rl.CheckLimit(ip)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = rl.CheckLimit(ip)
	require.NoError(t, err)
	require.False(t, allowed)

	mr.FastForward(2 * time.Second)

	allowed, retryAfter, err := rl.CheckLimit(ip)
	require.NoError(t, err)
	assert.False(t, allowed, "block must outlast the counting window")
	assert.Greater(t, retryAfter, 50*time.Second)

	mr.FastForward(time.Minute)

	allowed, _, err = rl.CheckLimit(ip)
	require.NoError(t, err)
	assert.True(t, allowed, "Request should be allowed after the block expires")
}

func TestRateLimiter_Reset(t *testing.T) {
	rl, _ := setupTestRateLimiter(t, 1, time.Minute, time.Minute)

	ip := "192.168.1.100"
	_, _, _ = rl.CheckLimit(ip)
	allowed, _, err := rl.CheckLimit(ip)
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, rl.Reset(ip))

	allowed, _, err = rl.CheckLimit(ip)
	require.NoError(t, err)
	assert.True(t, allowed)
}

// TestRateLimiter_FailsOpen tests that requests pass when Redis is down
func TestRateLimiter_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, mr := setupTestRateLimiter(t, 1, time.Minute, time.Minute)
	router := newLimitedRouter(rl)
	mr.Close()

	for i := 0; i < 3; i++ {
		w := doLogin(router, "192.168.1.1")
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should pass while Redis is down", i+1)
	}
}

// TestRateLimiter_SequentialRequests tests the exact split between allowed and limited requests
func TestRateLimiter_SequentialRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, _ := setupTestRateLimiter(t, 10, time.Minute, time.Minute)
	router := newLimitedRouter(rl)

	successCount := 0
	rateLimitedCount := 0

	for i := 0; i < 20; i++ {
		w := doLogin(router, "192.168.1.1")

		if w.Code == http.StatusOK {
			successCount++
		} else if w.Code == http.StatusTooManyRequests {
			rateLimitedCount++
		}
	}

	assert.Equal(t, 10, successCount, "Should allow exactly 10 requests")
	assert.Equal(t, 10, rateLimitedCount, "Should block exactly 10 requests")
}

// TestRateLimiter_RetryAfterHeader tests that Retry-After header is set correctly
func TestRateLimiter_RetryAfterHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, _ := setupTestRateLimiter(t, 1, time.Minute, 0)
	router := newLimitedRouter(rl)

	w1 := doLogin(router, "192.168.1.1")
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := doLogin(router, "192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)

	seconds, err := strconv.Atoi(w2.Header().Get("Retry-After"))
	require.NoError(t, err, "Retry-After header should be whole seconds")
	assert.Greater(t, seconds, 0)
	assert.LessOrEqual(t, seconds, 60)
}

// BenchmarkRateLimiter_CheckLimit benchmarks the CheckLimit method
func BenchmarkRateLimiter_CheckLimit(b *testing.B) {
	rl, _ := setupTestRateLimiter(b, 1000000, time.Minute, 0)

	ip := "192.168.1.100"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = rl.CheckLimit(ip)
	}
}

// BenchmarkRateLimiter_Middleware benchmarks the middleware
func BenchmarkRateLimiter_Middleware(b *testing.B) {
	gin.SetMode(gin.ReleaseMode)

	rl, _ := setupTestRateLimiter(b, 1000000, time.Minute, 0)
	router := newLimitedRouter(rl)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doLogin(router, "192.168.1.1")
	}
}
