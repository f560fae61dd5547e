package auth

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that admits only callers whose role is in
// the allow-list. It must run after AccessGuard. There is no implicit admin
// bypass: admins reach a route only when RoleAdmin is listed.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	allowed := make(map[Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if UserIDFromContext(ctx) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, notAuthorizedMsg)
			}

			role := RoleFromContext(ctx)
			if !allowed[role] {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("User role %s is not authorized to access this resource", role))
			}
			return next(c)
		}
	}
}
