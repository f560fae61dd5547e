package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
)

func TestRequestTimeout_CompletesWithinDeadline(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patients/allergies", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestTimeout(5*time.Second, nil)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequestTimeout_ReturnsTimeoutOnExpiry(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patients/medical-history", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return c.String(http.StatusOK, "ok")
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	if err := RequestTimeout(50*time.Millisecond, nil)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected status 504, got %d", rec.Code)
	}

	var env apperr.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if env.Success || env.Error == "" {
		t.Errorf("expected error envelope, got %+v", env)
	}
}

func TestRequestTimeout_Skip(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/files/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline for skipped path")
		}
		return c.String(http.StatusOK, "file")
	}
	skip := func(c echo.Context) bool {
		return strings.HasPrefix(c.Request().URL.Path, "/api/files/")
	}

	if err := RequestTimeout(50*time.Millisecond, skip)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != "file" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestRequestTimeout_PropagatesHandlerError(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), httptest.NewRecorder())

	want := apperr.NotFound("Patient profile not found")
	err := RequestTimeout(time.Second, nil)(func(echo.Context) error { return want })(c)
	if err != want {
		t.Errorf("expected handler error to pass through, got %v", err)
	}
}

func TestRequestTimeout_PanicReachesRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	e.Use(Recovery(logger))
	e.Use(RequestTimeout(5*time.Second, nil))
	e.GET("/api/patients/profile", func(c echo.Context) error {
		var profile *struct{ Name string }
		return c.String(http.StatusOK, profile.Name)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patients/profile", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var env apperr.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if env.Success || env.Error != "Server Error" {
		t.Errorf("unexpected envelope %+v", env)
	}
	for _, want := range []string{"panic recovered", "nil pointer dereference", "TestRequestTimeout_PanicReachesRecovery"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in log, got %s", want, buf.String())
		}
	}
}

func TestRequestTimeout_WaitsForHandlerAndDropsLateWrites(t *testing.T) {
	e := echo.New()
	var finished atomic.Bool
	var lateErr atomic.Value

	e.Use(RequestTimeout(10*time.Millisecond, nil))
	e.GET("/api/patients/medical-history", func(c echo.Context) error {
		time.Sleep(30 * time.Millisecond)
		err := c.JSON(http.StatusOK, map[string]string{"late": "yes"})
		if err != nil {
			lateErr.Store(err)
		}
		finished.Store(true)
		return err
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patients/medical-history", nil))

	if !finished.Load() {
		t.Fatal("expected middleware to return only after the handler")
	}
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "late") {
		t.Errorf("late handler write reached the client: %s", rec.Body.String())
	}
	if err, _ := lateErr.Load().(error); !errors.Is(err, http.ErrHandlerTimeout) {
		t.Errorf("expected late write to fail with ErrHandlerTimeout, got %v", err)
	}

	var env apperr.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if env.Error != "Request took too long to process" {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestRequestTimeout_KeepsHeadersOnErrorReturn(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	e.Use(RequestTimeout(time.Second, nil))
	e.POST("/api/auth/login", func(c echo.Context) error {
		c.Response().Header().Set("Retry-After", "60")
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts, please try again later")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("expected Retry-After 60, got %q", got)
	}
}
