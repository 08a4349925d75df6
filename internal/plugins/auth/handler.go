package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/form"
	"github.com/keyxmakerx/juken/internal/middleware"
)

// Cookie names. The refresh cookie is scoped to the auth API.
const (
	sessionCookieName = "juken_session"
	refreshCookieName = "juken_refresh"
	refreshCookiePath = "/api/auth"
)

// Form field names, shared with the web app.
type authField string

const (
	fieldEmail           authField = "email"
	fieldPassword        authField = "password"
	fieldConfirmPassword authField = "confirm_password"
	fieldUsername        authField = "username"
)

// DefaultInactivityInterval is how often the web app re-checks its session
// when no interval is configured.
const DefaultInactivityInterval = 5 * time.Minute

// HandlerConfig holds cookie lifetimes and the session check cadence.
type HandlerConfig struct {
	RefreshTTL time.Duration

	// InactivityCheckInterval is sent to the web app with every session
	// response; it re-checks GET /api/auth/session at this cadence.
	InactivityCheckInterval time.Duration
}

// Handler handles the auth JSON API. Handlers are thin: they bind and
// validate the request, run the workflow, and write the response.
type Handler struct {
	workflow *Workflow
	cfg      HandlerConfig
}

// NewHandler creates a new auth handler.
func NewHandler(workflow *Workflow, cfg HandlerConfig) *Handler {
	if cfg.InactivityCheckInterval <= 0 {
		cfg.InactivityCheckInterval = DefaultInactivityInterval
	}
	return &Handler{workflow: workflow, cfg: cfg}
}

// client builds the per-request workflow client from the cookies.
func (h *Handler) client(c echo.Context) *Client {
	return h.workflow.NewClient(middleware.GetClientKey(c), GetSession(c))
}

// SignUp registers an account (POST /api/auth/signup).
func (h *Handler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	var f *form.Form[authField]
	f = form.New(form.Values[authField]{
		fieldEmail:           req.Email,
		fieldPassword:        req.Password,
		fieldConfirmPassword: req.ConfirmPassword,
		fieldUsername:        req.Username,
	}, form.Rules[authField]{
		fieldEmail:           form.Email,
		fieldPassword:        form.Password,
		fieldConfirmPassword: form.ConfirmPassword(func() string { return f.Value(fieldPassword) }),
		fieldUsername:        form.Username,
	})
	if !f.ValidateAll() {
		return form.FieldErrors(f.Err())
	}

	client := h.client(c)
	defer client.Close()

	ctx := c.Request().Context()
	user, err := client.SignUp(ctx, req.Email, req.Password, req.Username)
	if err != nil {
		return err
	}

	resp := map[string]any{
		"user":                  user,
		"confirmation_required": true,
	}

	// Accounts that need no confirmation are signed in immediately and
	// land like a sign-in.
	if session := client.Session(); session != nil {
		h.setSessionCookies(c, session)
		route, err := client.ResolveRoute(ctx, user)
		if err != nil {
			slog.Warn("resolving post-signup route failed", slog.Any("error", err))
			route = Route{Kind: RouteWorkspaceSelection}
		}
		resp["confirmation_required"] = false
		resp["redirect"] = route.Path()
	}

	return c.JSON(http.StatusCreated, resp)
}

// SignIn authenticates and sets the session cookies (POST /api/auth/signin).
func (h *Handler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	f := form.New(form.Values[authField]{
		fieldEmail:    req.Email,
		fieldPassword: req.Password,
	}, form.Rules[authField]{
		fieldEmail:    form.Email,
		fieldPassword: form.LoginPassword,
	})
	if !f.ValidateAll() {
		return form.FieldErrors(f.Err())
	}

	client := h.client(c)
	defer client.Close()

	result, err := client.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setSessionCookies(c, result.Session)
	return c.JSON(http.StatusOK, RedirectResponse{Redirect: result.Route.Path()})
}

// SignOut ends the session (POST /api/auth/signout). Always 204.
func (h *Handler) SignOut(c echo.Context) error {
	client := h.client(c)
	defer client.Close()

	client.SignOut(c.Request().Context())
	clearSessionCookies(c)
	return c.NoContent(http.StatusNoContent)
}

// Session returns the current user (GET /api/auth/session). The web app
// calls it on load and every check interval. A cookie naming a session
// that has since timed out gets 401 session_expired with the redirect to
// /login?timeout=true, and the cookies are cleared.
func (h *Handler) Session(c echo.Context) error {
	token := getSessionToken(c)
	if token == "" {
		return apperror.NewUnauthorized("authentication required")
	}

	client := h.workflow.NewClient(middleware.GetClientKey(c), &Session{AccessToken: token})
	defer client.Close()

	if err := client.CheckSession(c.Request().Context()); err != nil {
		if apperror.KindOf(err) == apperror.KindSessionExpired {
			clearSessionCookies(c)
		}
		return err
	}
	return c.JSON(http.StatusOK, h.sessionResponse(client.Session()))
}

// Refresh rotates the refresh cookie into a new session
// (POST /api/auth/refresh).
func (h *Handler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return apperror.NewUnauthorized("session expired")
	}

	client := h.client(c)
	defer client.Close()

	session, err := client.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		clearSessionCookies(c)
		return err
	}

	h.setSessionCookies(c, session)
	return c.JSON(http.StatusOK, h.sessionResponse(session))
}

func (h *Handler) sessionResponse(session *Session) SessionResponse {
	return SessionResponse{
		User:                 session.User,
		ExpiresAt:            session.ExpiresAt,
		CheckIntervalSeconds: int(h.cfg.InactivityCheckInterval.Seconds()),
	}
}

// RequestPasswordReset mails a recovery link
// (POST /api/auth/password-reset). Always 202 once the address is
// well-formed, whether or not an account exists.
func (h *Handler) RequestPasswordReset(c echo.Context) error {
	var req PasswordResetRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	f := form.New(form.Values[authField]{fieldEmail: req.Email}, form.Rules[authField]{fieldEmail: form.Email})
	if !f.ValidateAll() {
		return form.FieldErrors(f.Err())
	}

	client := h.client(c)
	defer client.Close()

	if err := client.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		slog.Error("password reset request failed",
			slog.String("kind", apperror.KindOf(err).String()),
			slog.Any("error", err),
		)
	}
	return c.NoContent(http.StatusAccepted)
}

// ConfirmPasswordReset sets a new password from a recovery link
// (POST /api/auth/password-reset/confirm).
func (h *Handler) ConfirmPasswordReset(c echo.Context) error {
	var req PasswordResetConfirmRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	var f *form.Form[authField]
	f = form.New(form.Values[authField]{
		fieldPassword:        req.Password,
		fieldConfirmPassword: req.ConfirmPassword,
	}, form.Rules[authField]{
		fieldPassword:        form.Password,
		fieldConfirmPassword: form.ConfirmPassword(func() string { return f.Value(fieldPassword) }),
	})
	if !f.ValidateAll() {
		return form.FieldErrors(f.Err())
	}

	client := h.client(c)
	defer client.Close()

	link := RecoveryLink{TokenHash: req.TokenHash, AccessToken: req.AccessToken, RefreshToken: req.RefreshToken}
	if err := client.ConfirmPasswordReset(c.Request().Context(), link, req.Password); err != nil {
		return err
	}

	clearSessionCookies(c)
	return c.JSON(http.StatusOK, RedirectResponse{Redirect: Route{Kind: RouteLogin}.Path()})
}

// ConfirmSignUp redeems a confirmation link
// (GET /api/auth/confirm?token_hash=...&type=signup).
func (h *Handler) ConfirmSignUp(c echo.Context) error {
	if t := c.QueryParam("type"); t != "" && t != string(OTPSignup) {
		return newInvalidConfirmLink(nil)
	}

	client := h.client(c)
	defer client.Close()

	result, err := client.ConfirmSignUp(c.Request().Context(), c.QueryParam("token_hash"))
	if err != nil {
		return err
	}

	h.setSessionCookies(c, result.Session)
	return c.JSON(http.StatusOK, RedirectResponse{Redirect: result.Route.Path()})
}

// --- Cookie helpers ---

// getSessionToken reads the access token from the cookie.
func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// setSessionCookies sets the access and refresh cookies. The access cookie
// lives for the browser session; Redis enforces the idle timeout.
func (h *Handler) setSessionCookies(c echo.Context, session *Session) {
	secure := c.Scheme() == "https"
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    session.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    session.RefreshToken,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.cfg.RefreshTTL.Seconds()),
	})
}

// clearSessionCookies removes both cookies by setting MaxAge to -1.
func clearSessionCookies(c echo.Context) {
	for _, ck := range []struct{ name, path string }{
		{sessionCookieName, "/"},
		{refreshCookieName, refreshCookiePath},
	} {
		c.SetCookie(&http.Cookie{
			Name:     ck.name,
			Value:    "",
			Path:     ck.path,
			HttpOnly: true,
			MaxAge:   -1,
		})
	}
}
