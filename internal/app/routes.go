package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/middleware"
	"github.com/keyxmakerx/juken/internal/plugins/audit"
	"github.com/keyxmakerx/juken/internal/plugins/auth"
	"github.com/keyxmakerx/juken/internal/plugins/invitations"
	"github.com/keyxmakerx/juken/internal/plugins/smtp"
	"github.com/keyxmakerx/juken/internal/plugins/workspaces"
)

// healthTimeout bounds each dependency ping in /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes builds every plugin and registers its routes. This is the
// single place where plugins meet; cross-plugin interfaces are satisfied
// here.
func (a *App) RegisterRoutes() {
	e := a.Echo
	cfg := a.Config

	e.GET("/healthz", a.health)

	// --- Plugins ---

	mail := smtp.NewSMTPService(smtp.SettingsFromConfig(cfg.SMTP))

	sessions := auth.NewSessionStore(a.Redis, cfg.Auth.SessionIdleTimeout, cfg.Auth.RefreshTTL)
	provider := auth.NewLocalProvider(auth.NewUserRepository(a.DB), sessions, mail, auth.LocalProviderConfig{
		RequireEmailConfirmation: cfg.Auth.RequireEmailConfirmation,
		ConfirmURL:               cfg.ConfirmURL(),
		OneTimeTokenTTL:          cfg.Auth.OneTimeTokenTTL,
	})

	wsService := workspaces.NewWorkspaceService(workspaces.NewWorkspaceRepository(a.DB))
	auditService := audit.NewAuditService(audit.NewAuditRepository(a.DB))

	inviteService := invitations.NewInvitationService(
		invitations.NewInvitationRepository(a.DB),
		wsService,
		invitations.NewPendingStore(a.Redis, cfg.Invite.PendingTTL),
		invitations.ServiceConfig{
			BaseURL:  cfg.BaseURL,
			TTL:      cfg.Invite.TTL,
			MaxUses:  cfg.Invite.MaxUses,
			Activity: auditService,
		},
	)

	workflow := auth.NewWorkflow(provider, a.LoginLimiter, wsService, inviteService, auth.WorkflowConfig{
		ResetRedirectURL: cfg.PasswordResetURL(),
	})

	limit := middleware.RateLimit(a.IPLimiter)

	// --- Routes ---

	auth.RegisterRoutes(e, auth.NewHandler(workflow, auth.HandlerConfig{
		RefreshTTL:              cfg.Auth.RefreshTTL,
		InactivityCheckInterval: cfg.Auth.InactivityCheckInterval,
	}), provider, limit)
	workspaces.RegisterRoutes(e, workspaces.NewHandler(wsService), wsService, provider)
	wsGroup := workspaces.Group(e, wsService, provider)
	invitations.RegisterRoutes(e, invitations.NewHandler(inviteService), provider, wsGroup, limit)
	audit.RegisterRoutes(wsGroup, audit.NewHandler(auditService))
}

// health pings MariaDB and Redis (GET /healthz).
func (a *App) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true

	if err := a.DB.PingContext(ctx); err != nil {
		status["database"] = "unavailable"
		healthy = false
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		status["redis"] = "unavailable"
		healthy = false
	}

	if !healthy {
		status["status"] = "degraded"
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	status["status"] = "ok"
	return c.JSON(http.StatusOK, status)
}
