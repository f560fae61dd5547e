package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityConfig controls the response security headers.
type SecurityConfig struct {
	// HSTS enables Strict-Transport-Security; only set it behind TLS.
	HSTS bool
	// FrameAncestors lists origins allowed to embed responses, such as the
	// web client showing a health card PDF in an iframe. Empty denies all
	// framing.
	FrameAncestors []string
}

// SecurityHeaders sets security headers on every response. Responses may
// carry patient data, so nothing is cached.
func SecurityHeaders(cfg SecurityConfig) echo.MiddlewareFunc {
	ancestors := "'none'"
	if len(cfg.FrameAncestors) > 0 {
		ancestors = strings.Join(cfg.FrameAncestors, " ")
	}
	csp := "default-src 'none'; frame-ancestors " + ancestors

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			if len(cfg.FrameAncestors) == 0 {
				h.Set("X-Frame-Options", "DENY")
			}
			h.Set("Content-Security-Policy", csp)
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			return next(c)
		}
	}
}
