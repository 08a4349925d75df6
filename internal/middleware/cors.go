package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to call the API, typically the
	// single-page app origin. "*" allows any origin.
	AllowedOrigins []string

	// AllowCredentials lets the browser send the session and client-key
	// cookies on cross-origin requests.
	AllowCredentials bool
}

var (
	corsAllowMethods = strings.Join([]string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}, ", ")

	corsAllowHeaders = strings.Join([]string{
		"Content-Type",
		"Authorization",
		"X-Requested-With",
		csrfHeaderName,
	}, ", ")
)

// CORS returns middleware that handles Cross-Origin Resource Sharing headers
// for the JSON API when the web app is served from another origin.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	// Build an O(1) lookup for the configured origins.
	allowAll := false
	originSet := make(map[string]bool)
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = true
	}

	// SECURITY: a wildcard origin with credentials would let any site make
	// authenticated requests.
	if allowAll && cfg.AllowCredentials {
		slog.Warn("CORS misconfiguration: wildcard origin with credentials, credentials disabled")
		cfg.AllowCredentials = false
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			origin := req.Header.Get("Origin")

			// No Origin header means same-origin request.
			if origin == "" {
				return next(c)
			}

			// Unknown origins get no CORS headers; the browser blocks the response.
			if !allowAll && !originSet[origin] {
				return next(c)
			}

			// Echo the specific origin rather than "*"; browsers reject a
			// wildcard on credentialed requests.
			res.Header().Set("Access-Control-Allow-Origin", origin)
			res.Header().Add("Vary", "Origin")
			if cfg.AllowCredentials {
				res.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Preflight: answer directly, the route handler never runs.
			if req.Method == http.MethodOptions {
				res.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				res.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				res.Header().Set("Access-Control-Max-Age", "3600")
				return c.NoContent(http.StatusNoContent)
			}

			// The web app reads Retry-After to show the lockout countdown.
			res.Header().Set("Access-Control-Expose-Headers", "Retry-After")
			return next(c)
		}
	}
}
