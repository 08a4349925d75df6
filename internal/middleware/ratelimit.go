package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/ratelimit"
)

// AttemptChecker records one attempt for an identifier. Satisfied by
// *ratelimit.Limiter.
type AttemptChecker interface {
	Check(identifier string) ratelimit.Result
}

// RateLimit returns middleware that throttles requests per client IP using
// limiter. Blocked requests get 429 with a Retry-After header in seconds.
// The limiter's own cleanup loop is run by the caller.
func RateLimit(limiter AttemptChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Prefixed so IP keys read apart from e-mail identifiers.
			res := limiter.Check("ip:" + c.RealIP())
			if !res.Allowed {
				// Round up so a client retrying on time is never early.
				if wait := time.Until(res.BlockedUntil); wait > 0 {
					c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				}
				return apperror.NewTooManyRequests("Rate limit exceeded. Please try again later.")
			}
			return next(c)
		}
	}
}
