package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
)

func TestAudit_LogsPatientDataAccess(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.GET("/api/doctors/patients/:patientId", okHandler, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), "doc-1", auth.RoleDoctor)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}, Audit(zerolog.New(&buf)))

	req := httptest.NewRequest(http.MethodGet, "/api/doctors/patients/P-1A2B3C4D", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode audit line: %v (%s)", err, buf.String())
	}
	if line["user_id"] != "doc-1" || line["role"] != "doctor" {
		t.Errorf("expected caller identity, got %v", line)
	}
	if line["patient_id"] != "P-1A2B3C4D" {
		t.Errorf("expected patient id, got %v", line["patient_id"])
	}
	if line["resource"] != "doctors/patients" || line["action"] != "read" {
		t.Errorf("unexpected resource/action: %v %v", line["resource"], line["action"])
	}
}

func TestAudit_SkipsOtherPaths(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.POST("/api/auth/login", okHandler, Audit(zerolog.New(&buf)))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if buf.Len() != 0 {
		t.Errorf("expected no audit entry, got %s", buf.String())
	}
}

func TestAudit_RecordsErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.GET("/api/records/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to view this record")
	}, Audit(zerolog.New(&buf)))

	req := httptest.NewRequest(http.MethodGet, "/api/records/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if line["status"] != float64(http.StatusForbidden) {
		t.Errorf("expected status 403, got %v", line["status"])
	}
}

func TestHTTPMethodToAction(t *testing.T) {
	cases := map[string]string{
		http.MethodGet:    "read",
		http.MethodHead:   "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for m, want := range cases {
		if got := httpMethodToAction(m); got != want {
			t.Errorf("%s: expected %s, got %s", m, want, got)
		}
	}
}

func TestExtractResource(t *testing.T) {
	cases := map[string]string{
		"/api/records/visits/123":     "records/visits",
		"/api/admin/doctors/1/status": "admin/doctors",
		"/api/files":                  "files",
		"/api/":                       "unknown",
	}
	for path, want := range cases {
		if got := extractResource(path); got != want {
			t.Errorf("%s: expected %s, got %s", path, want, got)
		}
	}
}
