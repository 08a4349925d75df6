package invitations

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/plugins/auth"
)

// RegisterRoutes sets up the invitation API. Preview and redemption work
// signed-in or not; creation hangs off the workspace-scoped group, which
// already requires membership. limit is the per-IP rate limiter.
func RegisterRoutes(e *echo.Echo, h *Handler, provider auth.Provider, workspaceGroup *echo.Group, limit echo.MiddlewareFunc) {
	g := e.Group("/api/invitations", auth.OptionalAuth(provider), limit)
	g.GET("/pending", h.Pending)
	g.GET("/:token", h.Preview)
	g.POST("/:token", h.Redeem)

	workspaceGroup.POST("/invitations", h.Create)
}
