package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

const notAuthorizedMsg = "Not authorized to access this route"

// GuardConfig selects where the Access Guard looks for a session token.
type GuardConfig struct {
	Verifier TokenVerifier
	// FromHeader accepts "Authorization: Bearer <token>".
	FromHeader bool
	// FromCookie accepts the session cookie.
	FromCookie bool
	CookieName string
	Skipper    func(c echo.Context) bool
}

// AccessGuard validates the session token and stores the caller's id and
// role on the request context. Requests without a valid token are rejected
// with 401 and never reach the handler.
func AccessGuard(cfg GuardConfig) echo.MiddlewareFunc {
	if cfg.CookieName == "" {
		cfg.CookieName = CookieName
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			tokenStr := extractToken(c, cfg)
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, notAuthorizedMsg)
			}

			claims, err := cfg.Verifier.Verify(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, notAuthorizedMsg)
			}

			ctx := WithIdentity(c.Request().Context(), claims.UserID, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// extractToken prefers the Authorization header and falls back to the
// cookie when both transports are enabled.
func extractToken(c echo.Context, cfg GuardConfig) string {
	if cfg.FromHeader {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				if tok := strings.TrimSpace(parts[1]); tok != "" {
					return tok
				}
			}
		}
	}
	if cfg.FromCookie {
		if cookie, err := c.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// WithIdentity returns a context carrying the authenticated caller.
func WithIdentity(ctx context.Context, userID string, role Role) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRoleKey, role)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RoleFromContext(ctx context.Context) Role {
	role, _ := ctx.Value(UserRoleKey).(Role)
	return role
}

// AccountID returns the authenticated caller's account id. It fails with 401
// when the request carries no usable identity.
func AccountID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, notAuthorizedMsg)
	}
	return id, nil
}
