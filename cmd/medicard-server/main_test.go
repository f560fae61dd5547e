package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/config"
	"github.com/Sonali2314/MediCardPlus/internal/platform/blobstore"
	"github.com/Sonali2314/MediCardPlus/internal/platform/db"
	"github.com/Sonali2314/MediCardPlus/internal/platform/middleware"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "test",
		CORSOrigins:         []string{"http://localhost:3000"},
		ClientURL:           "http://localhost:3000",
		JWTSecret:           "test-secret-test-secret-test-secret",
		JWTExpire:           time.Hour,
		JWTCookieExpireDays: 1,
		TokenTransport:      config.TransportBoth,
		MaxFileUpload:       1 << 20,
		RequestTimeout:      5 * time.Second,
		BlobBackend:         config.BlobBackendMemory,
		LoginRatePerMinute:  10,
	}
}

func serve(t *testing.T, cfg *config.Config, pinger db.Pinger) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	session, err := newSession(cfg)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	blobs := blobstore.NewInMemoryBlobStore(cfg.MaxFileUpload)
	e := newEcho(cfg, pinger, logger)
	loginLimit := middleware.LoginRateLimit(middleware.NewMemoryCounter(), cfg.LoginRatePerMinute, time.Minute, logger)
	// Repositories are never reached: every request below is rejected
	// before it touches the database.
	registerRoutes(e, cfg, session, newServices(cfg, nil, blobs, logger), blobs, loginLimit, logger)
	return e
}

func request(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := serve(t, testConfig(), fakePinger{})

	rec := request(h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("/health: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}

	rec = request(h, http.MethodGet, "/health/db", "")
	if rec.Code != http.StatusOK {
		t.Errorf("/health/db: expected 200, got %d", rec.Code)
	}
}

func TestHealthDB_Unreachable(t *testing.T) {
	h := serve(t, testConfig(), fakePinger{err: errors.New("connection refused")})
	rec := request(h, http.MethodGet, "/health/db", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestRoutes_ProtectedWithoutToken(t *testing.T) {
	h := serve(t, testConfig(), fakePinger{})
	paths := []string{
		"/api/auth/me",
		"/api/patients/profile",
		"/api/patients/medical-history",
		"/api/doctors/profile",
		"/api/records/visits/6f1c4c52-8a55-4d43-9bd6-0c1d3d2a1b10",
		"/api/admin/stats",
		"/api/files/abc",
	}
	for _, p := range paths {
		rec := request(h, http.MethodGet, p, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", p, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"success":false`) {
			t.Errorf("%s: expected error envelope, got %s", p, rec.Body.String())
		}
	}
}

func TestRoutes_PublicAuthEndpoints(t *testing.T) {
	h := serve(t, testConfig(), fakePinger{})

	rec := request(h, http.MethodPost, "/api/auth/login", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("login without fields: expected 400, got %d", rec.Code)
	}

	rec = request(h, http.MethodPost, "/api/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Errorf("logout: expected 200, got %d", rec.Code)
	}
}

func TestSanitizerRejectsTraversal(t *testing.T) {
	h := serve(t, testConfig(), fakePinger{})
	rec := request(h, http.MethodGet, "/api/files/%2e%2e%2fsecret", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestNewSession_Transports(t *testing.T) {
	tests := []struct {
		transport      string
		header, cookie bool
	}{
		{config.TransportBoth, true, true},
		{config.TransportHeader, true, false},
		{config.TransportCookie, false, true},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.TokenTransport = tt.transport
		s, err := newSession(cfg)
		if err != nil {
			t.Fatal(err)
		}
		if s.Header != tt.header || s.Cookie != tt.cookie {
			t.Errorf("%s: got header=%v cookie=%v", tt.transport, s.Header, s.Cookie)
		}
		if s.CookieTTL != 24*time.Hour {
			t.Errorf("%s: unexpected cookie ttl %s", tt.transport, s.CookieTTL)
		}
	}
}

func TestNewLoginCounter_FallsBackToMemory(t *testing.T) {
	for _, url := range []string{"", "not a url"} {
		cfg := testConfig()
		cfg.RedisURL = url
		counter, closeFn := newLoginCounter(context.Background(), cfg, zerolog.Nop())
		if _, ok := counter.(*middleware.MemoryCounter); !ok {
			t.Errorf("REDIS_URL=%q: expected memory counter, got %T", url, counter)
		}
		closeFn()
	}
}

func TestNewBlobStore_Memory(t *testing.T) {
	store, err := newBlobStore(context.Background(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*blobstore.InMemoryBlobStore); !ok {
		t.Errorf("expected in-memory store, got %T", store)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	applied := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "accounts", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "profiles"},
	})
	out := buf.String()
	if !strings.Contains(out, "2024-03-01 10:00:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
