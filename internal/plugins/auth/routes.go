package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the auth API. Sign-up, sign-in and the password
// reset endpoints are wrapped in limit, the per-IP rate limiter.
func RegisterRoutes(e *echo.Echo, h *Handler, provider Provider, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")

	g.POST("/signup", h.SignUp, limit)
	g.POST("/signin", h.SignIn, limit)
	g.POST("/password-reset", h.RequestPasswordReset, limit)
	g.POST("/password-reset/confirm", h.ConfirmPasswordReset, limit)
	g.GET("/confirm", h.ConfirmSignUp, limit)

	g.POST("/signout", h.SignOut, OptionalAuth(provider))
	g.POST("/refresh", h.Refresh)
	g.GET("/session", h.Session)
}
