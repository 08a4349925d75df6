package audit

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/plugins/workspaces"
)

// RegisterRoutes mounts the activity feed on the workspace-scoped group.
// Only owners may read it.
func RegisterRoutes(workspaceGroup *echo.Group, h *Handler) {
	workspaceGroup.GET("/activity", h.Activity, workspaces.RequireRole(workspaces.RoleOwner))
}
