package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// ErrRequestTimeout is returned when a handler outlives its deadline.
var ErrRequestTimeout = echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")

// RequestTimeout bounds each request's context by d. Long-lived WebSocket
// upgrades (paths ending in /ws) are passed through untouched.
func RequestTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if strings.HasSuffix(req.URL.Path, "/ws") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(req.Context(), d)
			defer cancel()
			c.SetRequest(req.WithContext(ctx))

			done := make(chan error, 1)
			go func() { done <- next(c) }()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return ctx.Err()
				}
				if c.Response().Committed {
					return nil
				}
				return ErrRequestTimeout
			}
		}
	}
}
