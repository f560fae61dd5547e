package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// WindowCounter counts hits per key within a fixed window.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter shares login attempt counts across server instances.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, prefix: "medicard:login:"}
}

// Hit creates the key with the window as its TTL when absent and increments
// it, in one transaction. INCR keeps the TTL, so a key never outlives its
// window.
func (r *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := r.prefix + key
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis login counter: %w", err)
	}
	return incr.Val(), nil
}

// MemoryCounter is the single-instance fallback used when no Redis is
// configured.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
	lastGC  time.Time
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]memoryWindow), now: time.Now}
}

func (m *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastGC) > window {
		for k, w := range m.windows {
			if now.After(w.resetAt) {
				delete(m.windows, k)
			}
		}
		m.lastGC = now
	}

	w := m.windows[key]
	if now.After(w.resetAt) || w.resetAt.IsZero() {
		w = memoryWindow{resetAt: now.Add(window)}
	}
	w.count++
	m.windows[key] = w
	return w.count, nil
}

// LoginRateLimit caps login attempts per client IP to max per window. When
// the counter backend fails the request is let through and the failure is
// logged.
func LoginRateLimit(counter WindowCounter, max int, window time.Duration, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if max <= 0 {
				return next(c)
			}

			n, err := counter.Hit(c.Request().Context(), c.RealIP(), window)
			if err != nil {
				logger.Warn().Err(err).Str("remote_ip", c.RealIP()).Msg("login rate limiter unavailable")
				return next(c)
			}
			if n > int64(max) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts, please try again later")
			}
			return next(c)
		}
	}
}
