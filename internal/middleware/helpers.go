package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	clientCookieName = "juken_client"
	clientContextKey = "client_key"
	clientCookieTTL  = 365 * 24 * time.Hour
)

// ClientKey identifies a browser across requests, signed-in or not. It keys
// short-lived per-client state such as a pending invitation token and the
// auth workflow mirror. The cookie is value "<uuid>.<hmac>" so a client
// cannot pick another client's key.
func ClientKey(secret string) echo.MiddlewareFunc {
	mac := func(id string) string {
		h := hmac.New(sha256.New, []byte(secret))
		h.Write([]byte(id))
		return hex.EncodeToString(h.Sum(nil))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Reuse the key when the signature checks out.
			if cookie, err := c.Cookie(clientCookieName); err == nil {
				if id, sig, ok := strings.Cut(cookie.Value, "."); ok &&
					hmac.Equal([]byte(sig), []byte(mac(id))) {
					c.Set(clientContextKey, id)
					return next(c)
				}
			}

			// Missing or tampered cookie: mint a new key.
			id := uuid.NewString()
			c.SetCookie(&http.Cookie{
				Name:     clientCookieName,
				Value:    id + "." + mac(id),
				Path:     "/",
				MaxAge:   int(clientCookieTTL.Seconds()),
				HttpOnly: true,
				Secure:   isSecureRequest(c.Request()),
				SameSite: http.SameSiteLaxMode,
			})
			c.Set(clientContextKey, id)
			return next(c)
		}
	}
}

// GetClientKey returns the client key set by ClientKey, or "" when the
// middleware is not installed on the route.
func GetClientKey(c echo.Context) string {
	if id, ok := c.Get(clientContextKey).(string); ok {
		return id
	}
	return ""
}

// unmatchedPath stands in for the path of a request no route matched.
const unmatchedPath = "(unmatched)"

// RoutePath returns the matched route template for logging, e.g.
// "/api/invitations/:token". The raw URL path is never logged: invitation
// tokens travel in it. Requests that matched no route log unmatchedPath.
func RoutePath(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return unmatchedPath
}

// isSecureRequest reports whether the request arrived over TLS, directly or
// through a TLS-terminating proxy.
func isSecureRequest(req *http.Request) bool {
	return req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https"
}
