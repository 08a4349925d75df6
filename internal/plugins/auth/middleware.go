package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/apperror"
)

// Context keys for storing session data in Echo context. Other plugins
// use the exported getters below instead of these keys.
const (
	contextKeySession = "auth_session"
	contextKeyUserID  = "auth_user_id"
)

// RequireAuth returns middleware that resolves the session cookie through
// the provider and injects it into the request context. A missing or dead
// session gets 401 and the stale cookie is cleared.
func RequireAuth(provider Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, err := lookupSession(c, provider)
			if err != nil {
				return err
			}
			if session == nil {
				clearSessionCookies(c)
				return apperror.NewUnauthorized("authentication required")
			}
			setSession(c, session)
			return next(c)
		}
	}
}

// OptionalAuth injects the session when the cookie names a live one and
// passes anonymous requests through unchanged.
func OptionalAuth(provider Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, err := lookupSession(c, provider)
			if err != nil {
				return err
			}
			if session != nil {
				setSession(c, session)
			}
			return next(c)
		}
	}
}

func lookupSession(c echo.Context, provider Provider) (*Session, error) {
	token := getSessionToken(c)
	if token == "" {
		return nil, nil
	}
	session, err := provider.GetSession(c.Request().Context(), token)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return session, nil
}

func setSession(c echo.Context, session *Session) {
	c.Set(contextKeySession, session)
	c.Set(contextKeyUserID, session.User.ID)
}

// --- Exported getters for other plugins ---

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is not authenticated.
func GetSession(c echo.Context) *Session {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}

// GetUser returns the authenticated user, or nil.
func GetUser(c echo.Context) *User {
	if s := GetSession(c); s != nil {
		return &s.User
	}
	return nil
}

// GetUserID retrieves the authenticated user's ID from the Echo context.
// Returns empty string if the request is not authenticated.
func GetUserID(c echo.Context) string {
	id, ok := c.Get(contextKeyUserID).(string)
	if !ok {
		return ""
	}
	return id
}
