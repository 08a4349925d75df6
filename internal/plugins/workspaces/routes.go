package workspaces

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/plugins/auth"
)

// RegisterRoutes sets up the workspace API. Every route requires a session;
// workspace-scoped routes also require membership.
func RegisterRoutes(e *echo.Echo, h *Handler, svc WorkspaceService, provider auth.Provider) {
	authed := e.Group("/api/workspaces", auth.RequireAuth(provider))
	authed.GET("", h.List)
	authed.POST("", h.Create)

	ws := authed.Group("/:id", RequireWorkspaceAccess(svc))
	ws.GET("/members", h.Members)
}

// Group returns the workspace-scoped route group so other plugins can
// mount routes under /api/workspaces/:id with the same access checks.
func Group(e *echo.Echo, svc WorkspaceService, provider auth.Provider) *echo.Group {
	return e.Group("/api/workspaces/:id", auth.RequireAuth(provider), RequireWorkspaceAccess(svc))
}
