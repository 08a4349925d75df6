package invitations

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/middleware"
	"github.com/keyxmakerx/juken/internal/plugins/auth"
	"github.com/keyxmakerx/juken/internal/plugins/workspaces"
)

// Handler handles the invitation JSON API.
type Handler struct {
	service InvitationService
}

// NewHandler creates a new invitation handler.
func NewHandler(service InvitationService) *Handler {
	return &Handler{service: service}
}

// Preview describes a token without redeeming it
// (GET /api/invitations/:token).
func (h *Handler) Preview(c echo.Context) error {
	t, err := h.service.Validate(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PreviewResponse{
		Status:        StatusValid,
		WorkspaceName: t.WorkspaceName,
		ExpiresAt:     t.ExpiresAt,
	})
}

// Pending describes the invitation parked for this client by an anonymous
// redemption (GET /api/invitations/pending). 404 when there is none.
func (h *Handler) Pending(c echo.Context) error {
	p, err := h.service.PendingFor(c.Request().Context(), middleware.GetClientKey(c))
	if err != nil {
		return err
	}
	if p == nil {
		return apperror.NewNotFound("no pending invitation")
	}
	return c.JSON(http.StatusOK, PendingResponse{
		WorkspaceName: p.WorkspaceName,
		Route:         auth.SignUpForInvite(p.Token, p.WorkspaceName).Path(),
	})
}

// Redeem joins the caller to the token's workspace, or parks the token
// for an anonymous caller (POST /api/invitations/:token).
func (h *Handler) Redeem(c echo.Context) error {
	out, err := h.service.ValidateAndRedeem(c.Request().Context(), c.Param("token"), auth.GetUser(c), middleware.GetClientKey(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Create issues a new invitation for the workspace
// (POST /api/workspaces/:id/invitations).
func (h *Handler) Create(c echo.Context) error {
	wc := workspaces.GetWorkspaceContext(c)
	if wc == nil {
		return apperror.NewMissingContext()
	}

	var req CreateInvitationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	t, err := h.service.Create(c.Request().Context(), wc.Workspace.ID, auth.GetUserID(c), CreateOptions{
		TTL:     time.Duration(req.ExpiresInHours) * time.Hour,
		MaxUses: req.MaxUses,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, CreatedResponse{
		Token:     t.Token,
		URL:       h.service.URL(t.Token),
		ExpiresAt: t.ExpiresAt,
		MaxUses:   t.MaxUses,
	})
}
