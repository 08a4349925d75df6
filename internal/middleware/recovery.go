package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// Recovery returns middleware that recovers from panics, logs the stack
// trace, and turns the panic into a 500 handled by the JSON error handler.
func Recovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (returnErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic recovered",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", c.Request().Method),
						slog.String("path", RoutePath(c)),
					)
					// The panic value stays internal; the client sees a
					// generic 500.
					returnErr = echo.NewHTTPError(http.StatusInternalServerError).
						SetInternal(fmt.Errorf("panic: %v", r))
				}
			}()

			return next(c)
		}
	}
}
