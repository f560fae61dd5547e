package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
)

const maxStackSize = 4096

// Recovery turns a handler panic into an internal error so the client gets
// the standard 500 envelope. The panic value and stack are logged together
// with the request id and, when known, the caller.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				var stack []byte
				if hp, ok := r.(*handlerPanic); ok {
					r, stack = hp.value, hp.stack
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				if stack == nil {
					stack = make([]byte, maxStackSize)
					stack = stack[:runtime.Stack(stack, false)]
				}

				ctx := c.Request().Context()
				logger.Error().
					Str("request_id", c.Response().Header().Get(RequestIDHeader)).
					Str("user_id", auth.UserIDFromContext(ctx)).
					Str("role", string(auth.RoleFromContext(ctx))).
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = apperr.Internal(fmt.Errorf("panic: %v", r))
			}()
			return next(c)
		}
	}
}
