package audit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/plugins/workspaces"
)

// Handler serves the activity feed.
type Handler struct {
	service AuditService
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService) *Handler {
	return &Handler{service: service}
}

// Activity returns one page of the workspace feed
// (GET /api/workspaces/:id/activity?page=N).
func (h *Handler) Activity(c echo.Context) error {
	wc := workspaces.GetWorkspaceContext(c)
	if wc == nil {
		return apperror.NewInternal(fmt.Errorf("activity route without workspace context"))
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	out, err := h.service.WorkspaceActivity(c.Request().Context(), wc.Workspace.ID, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
