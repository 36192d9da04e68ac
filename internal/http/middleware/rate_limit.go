package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"natours/internal/utils"
)

const rateLimitMessage = "Too many requests from this IP, please try again in an hour!"

// Decision is the outcome of counting one request in a fixed window.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter is a process-local fixed-window limiter. Counts are lost on restart.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	items map[string]*rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		items:  make(map[string]*rateEntry),
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.items[key]
	if !ok || !now.Before(entry.reset) {
		entry = &rateEntry{reset: now.Add(rl.window)}
		rl.items[key] = entry
		rl.sweep(now)
	}
	entry.count++

	return Decision{
		Allowed:   entry.count <= rl.limit,
		Remaining: max(rl.limit-entry.count, 0),
		Reset:     entry.reset,
	}, nil
}

// sweep drops expired windows. Called with mu held.
func (rl *MemoryLimiter) sweep(now time.Time) {
	for key, entry := range rl.items {
		if !now.Before(entry.reset) {
			delete(rl.items, key)
		}
	}
}

// RedisLimiter shares fixed windows across instances. The window key is
// created with its expiry by SET NX, so INCR never extends it.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, prefix: "ratelimit:"}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := rl.prefix + key

	pipe := rl.rdb.TxPipeline()
	pipe.SetNX(ctx, redisKey, 0, rl.window)
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit: %w", err)
	}

	count := int(incr.Val())
	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = rl.window
	}
	return Decision{
		Allowed:   count <= rl.limit,
		Remaining: max(rl.limit-count, 0),
		Reset:     time.Now().Add(remaining),
	}, nil
}

// RateLimit applies limiter per client IP. A limiter failure lets the request
// through.
func RateLimit(limiter Limiter, limit int, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Warn("rate limiter unavailable", "error", err, "request_id", GetRequestID(c))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retry := int(time.Until(decision.Reset).Seconds())
			c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
			utils.RespondError(c, utils.NewAppError(http.StatusTooManyRequests, utils.CodeRateLimit, rateLimitMessage, nil))
			return
		}

		c.Next()
	}
}
