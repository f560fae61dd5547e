package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 3}))
	e.GET("/", okHandler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_PerClientIP(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1}))
	e.GET("/", okHandler)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", ip, rec.Code)
		}
	}
}

func TestLimiterStore_EvictsIdle(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	s.get("a")
	now = now.Add(2 * time.Minute)
	s.get("b")

	if _, ok := s.visitors["a"]; ok {
		t.Error("expected idle visitor to be evicted")
	}
	if _, ok := s.visitors["b"]; !ok {
		t.Error("expected active visitor to be kept")
	}
}

func TestMemoryCounter_Window(t *testing.T) {
	m := NewMemoryCounter()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, _ := m.Hit(ctx, "ip", time.Minute)
		if got != want {
			t.Errorf("expected count %d, got %d", want, got)
		}
	}

	now = now.Add(61 * time.Second)
	if got, _ := m.Hit(ctx, "ip", time.Minute); got != 1 {
		t.Errorf("expected window reset, got %d", got)
	}
}

func TestMemoryCounter_PrunesExpiredWindows(t *testing.T) {
	m := NewMemoryCounter()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, _ = m.Hit(ctx, fmt.Sprintf("10.0.0.%d", i), time.Minute)
	}
	now = now.Add(2 * time.Minute)
	_, _ = m.Hit(ctx, "10.0.1.1", time.Minute)

	if len(m.windows) != 1 {
		t.Errorf("expected expired windows to be pruned, %d left", len(m.windows))
	}
	if _, ok := m.windows["10.0.1.1"]; !ok {
		t.Error("expected current window to be kept")
	}
}

// pipelineRecorder answers transactional pipelines in place of a Redis
// server and records the commands sent.
type pipelineRecorder struct {
	cmds  []redis.Cmder
	count int64
	err   error
}

func (p *pipelineRecorder) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (p *pipelineRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (p *pipelineRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		p.cmds = cmds
		if p.err != nil {
			return p.err
		}
		for _, cmd := range cmds {
			if incr, ok := cmd.(*redis.IntCmd); ok && cmd.Name() == "incr" {
				incr.SetVal(p.count)
			}
		}
		return nil
	}
}

func newRecordedRedisCounter(rec *pipelineRecorder) *RedisCounter {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(rec)
	return NewRedisCounter(client)
}

func TestRedisCounter_SetsTTLWithIncrement(t *testing.T) {
	rec := &pipelineRecorder{count: 3}
	counter := newRecordedRedisCounter(rec)

	n, err := counter.Hit(context.Background(), "203.0.113.9", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected count 3, got %d", n)
	}

	var names []string
	for _, cmd := range rec.cmds {
		names = append(names, cmd.Name())
	}
	want := []string{"multi", "set", "incr", "exec"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Fatalf("expected commands %v in one transaction, got %v", want, names)
	}
	if got := fmt.Sprint(rec.cmds[1].Args()); got != "[set medicard:login:203.0.113.9 0 ex 60 nx]" {
		t.Errorf("unexpected set args %s", got)
	}
}

func TestRedisCounter_Error(t *testing.T) {
	rec := &pipelineRecorder{err: errors.New("connection reset")}
	counter := newRecordedRedisCounter(rec)

	if _, err := counter.Hit(context.Background(), "203.0.113.9", time.Minute); err == nil {
		t.Fatal("expected error from failed transaction")
	}
}

func TestLoginRateLimit(t *testing.T) {
	e := echo.New()
	e.POST("/api/auth/login", okHandler, LoginRateLimit(NewMemoryCounter(), 2, time.Minute, zerolog.Nop()))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected [200 200 429], got %v", codes)
	}
}

type failingCounter struct{}

func (failingCounter) Hit(context.Context, string, time.Duration) (int64, error) {
	return 0, context.DeadlineExceeded
}

func TestLoginRateLimit_FailsOpen(t *testing.T) {
	e := echo.New()
	e.POST("/login", okHandler, LoginRateLimit(failingCounter{}, 1, time.Minute, zerolog.Nop()))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected limiter failure to let requests through, got %d", rec.Code)
		}
	}
}
