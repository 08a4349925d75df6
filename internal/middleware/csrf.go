package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// csrfTokenLength is the number of random bytes in a CSRF token (64 hex chars).
const csrfTokenLength = 32

const (
	csrfCookieName = "juken_csrf"
	csrfHeaderName = "X-CSRF-Token"
	csrfContextKey = "csrf_token"
)

// CSRFConfig holds configuration for the CSRF middleware.
type CSRFConfig struct {
	// SkipPrefixes lists path prefixes exempt from validation, e.g. health
	// checks. The token cookie is still issued on them.
	SkipPrefixes []string
}

// CSRF implements the double-submit cookie pattern on state-changing
// requests. The web app reads the juken_csrf cookie and echoes it in the
// X-CSRF-Token header; a mismatch is rejected with 403. Any safe request
// (GET /api/auth/session on boot) issues the cookie first.
func CSRF(cfg CSRFConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			// Read the existing token, or issue one for the next request.
			cookieToken := ""
			if cookie, err := req.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
				cookieToken = cookie.Value
			} else {
				token, genErr := generateCSRFToken()
				if genErr != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate CSRF token")
				}
				c.SetCookie(&http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false, // Must be readable by the web app.
					Secure:   isSecureRequest(req),
					SameSite: http.SameSiteLaxMode,
				})
				// A freshly issued token cannot have been echoed yet, so
				// cookieToken stays empty and a mutating request fails below.
			}
			c.Set(csrfContextKey, cookieToken)

			// Safe methods and exempt paths skip validation.
			if isSafeMethod(req.Method) || hasAnyPrefix(req.URL.Path, cfg.SkipPrefixes) {
				return next(c)
			}

			// Constant-time compare of header against cookie.
			submitted := req.Header.Get(csrfHeaderName)
			if submitted == "" || cookieToken == "" ||
				subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieToken)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid or missing CSRF token")
			}

			return next(c)
		}
	}
}

// isSafeMethod returns true for HTTP methods that should not change state.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// generateCSRFToken generates a cryptographically random hex-encoded token.
func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetCSRFToken returns the request's CSRF cookie value, or "" when the
// cookie was issued on this request.
func GetCSRFToken(c echo.Context) string {
	if token, ok := c.Get(csrfContextKey).(string); ok {
		return token
	}
	return ""
}
