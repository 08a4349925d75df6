package workspaces

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/plugins/auth"
)

// Handler handles the workspace JSON API.
type Handler struct {
	service WorkspaceService
}

// NewHandler creates a new workspace handler.
func NewHandler(service WorkspaceService) *Handler {
	return &Handler{service: service}
}

// List returns the caller's workspaces (GET /api/workspaces).
func (h *Handler) List(c echo.Context) error {
	list, err := h.service.ListForUser(c.Request().Context(), auth.GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"workspaces": list})
}

// Create makes a workspace owned by the caller (POST /api/workspaces).
func (h *Handler) Create(c echo.Context) error {
	var req CreateWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ws, err := h.service.Create(c.Request().Context(), auth.GetUserID(c), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ws)
}

// Members lists the workspace's members (GET /api/workspaces/:id/members).
func (h *Handler) Members(c echo.Context) error {
	wc := GetWorkspaceContext(c)
	if wc == nil {
		return apperror.NewMissingContext()
	}

	members, err := h.service.ListMembers(c.Request().Context(), wc.Workspace.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"workspace": wc.Workspace,
		"role":      wc.Role,
		"members":   members,
	})
}
