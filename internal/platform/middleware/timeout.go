package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/otsched/internal/platform/apperr"
)

// RequestTimeout sets a context deadline on each incoming request. The
// handler runs on the request goroutine and owns the echo.Context until it
// returns, so the deadline is cooperative: database calls and lock waits give
// up once it passes. A 504 is written only when the handler failed after the
// deadline without writing a response of its own, so a write that did commit
// is always reported as such.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return gatewayTimeout(c, err)
			}
			return err
		}
	}
}

func gatewayTimeout(c echo.Context, cause error) error {
	if c.Response().Committed {
		return cause
	}
	return c.JSON(http.StatusGatewayTimeout, apperr.Body{
		Error:   "timeout",
		Message: "request processing exceeded the allowed time limit",
	})
}
