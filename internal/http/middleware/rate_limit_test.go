package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryLimiterFixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewMemoryLimiter(2, time.Hour)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	d, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, now.Add(time.Hour), d.Reset)

	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.False(t, d.Allowed)

	other, _ := rl.Allow(ctx, "5.6.7.8")
	assert.True(t, other.Allowed, "keys are counted separately")

	now = now.Add(59 * time.Minute)
	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.False(t, d.Allowed, "the window does not slide")

	now = now.Add(time.Minute)
	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestMemoryLimiterSweepsExpiredWindows(t *testing.T) {
	now := time.Now()
	rl := NewMemoryLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	_, _ = rl.Allow(context.Background(), "a")
	now = now.Add(2 * time.Minute)
	_, _ = rl.Allow(context.Background(), "b")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.items, "a")
	assert.Contains(t, rl.items, "b")
}

func newRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLimiter(rdb, limit, window), mr
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	rl, mr := newRedisLimiter(t, 2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.WithinDuration(t, time.Now().Add(time.Hour), d.Reset, 5*time.Second)

	ttl := mr.TTL("ratelimit:1.2.3.4")
	assert.Equal(t, time.Hour, ttl, "counting does not extend the window")

	mr.FastForward(time.Hour)
	d, err = rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestRedisLimiterUnavailable(t *testing.T) {
	rl, mr := newRedisLimiter(t, 2, time.Hour)
	mr.Close()

	_, err := rl.Allow(context.Background(), "1.2.3.4")
	assert.Error(t, err)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, assert.AnError
}

func rateLimitedEngine(limiter Limiter, limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewErrorRenderer(discardLogger(), false).Handle())
	r.Use(RateLimit(limiter, limit, discardLogger()))
	r.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	r := rateLimitedEngine(NewMemoryLimiter(1, time.Hour), 1)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), rateLimitMessage)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := rateLimitedEngine(failingLimiter{}, 1)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
