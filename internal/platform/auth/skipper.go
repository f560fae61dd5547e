package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass the Access Guard.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/api/auth/register": true,
	"/api/auth/login":    true,
	"/api/auth/logout":   true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. Pass it as GuardConfig.Skipper.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
