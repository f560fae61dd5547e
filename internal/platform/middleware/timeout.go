package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
)

const timeoutMessage = "Request took too long to process"

// handlerPanic carries a panic out of the handler goroutine together with the
// stack captured where it happened.
type handlerPanic struct {
	value any
	stack []byte
}

type handlerResult struct {
	err   error
	panic *handlerPanic
}

// RequestTimeout sets a deadline on each request context. When the handler
// has not finished by then the client receives 504, the handler's context is
// cancelled and its later writes are discarded. The middleware returns only
// after the handler does, and a handler panic is re-raised on the request
// goroutine so Recovery sees it. Requests matched by skip get no deadline.
func RequestTimeout(timeout time.Duration, skip func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			res := c.Response()
			original := res.Writer
			tw := newTimeoutWriter(original)
			res.Writer = tw

			done := make(chan handlerResult, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						stack := make([]byte, maxStackSize)
						stack = stack[:runtime.Stack(stack, false)]
						done <- handlerResult{panic: &handlerPanic{value: r, stack: stack}}
					}
				}()
				done <- handlerResult{err: next(c)}
			}()

			var result handlerResult
			timedOut := false
			select {
			case result = <-done:
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					timedOut = tw.timeout()
				}
				result = <-done
			}
			res.Writer = original
			tw.release()

			if timedOut {
				res.Status = http.StatusGatewayTimeout
				res.Committed = true
			}
			if result.panic != nil {
				panic(result.panic)
			}
			if timedOut {
				return nil
			}
			return result.err
		}
	}
}

// timeoutWriter serialises writes from the handler goroutine with the 504
// written on deadline. The handler gets its own header map, copied to the
// underlying writer when it writes the status line.
type timeoutWriter struct {
	mu          sync.Mutex
	w           http.ResponseWriter
	header      http.Header
	wroteHeader bool
	timedOut    bool
}

func newTimeoutWriter(w http.ResponseWriter) *timeoutWriter {
	return &timeoutWriter{w: w, header: w.Header().Clone()}
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	dst := tw.w.Header()
	for k, v := range tw.header {
		dst[k] = v
	}
	tw.wroteHeader = true
	tw.w.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.w.Write(b)
}

// release copies headers set by a handler that never wrote a response, so
// the error handler sends them. Called once the handler has returned.
func (tw *timeoutWriter) release() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.wroteHeader || tw.timedOut {
		return
	}
	dst := tw.w.Header()
	for k, v := range tw.header {
		dst[k] = v
	}
}

// timeout stops further handler writes and sends the 504 envelope unless
// the handler already started its response. It reports whether the 504 was
// written.
func (tw *timeoutWriter) timeout() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.timedOut = true
	if tw.wroteHeader {
		return false
	}

	body, _ := json.Marshal(apperr.Envelope{Success: false, Error: timeoutMessage})
	tw.w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	tw.w.WriteHeader(http.StatusGatewayTimeout)
	_, _ = tw.w.Write(append(body, '\n'))
	return true
}
