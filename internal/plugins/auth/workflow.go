package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/form"
	"github.com/keyxmakerx/juken/internal/ratelimit"
)

// duplicateSignUpAge is how old an unconfirmed account returned by SignUp
// may be before it is treated as an existing account. This is a heuristic
// carried over from hosted providers and can misfire on slow round trips.
const duplicateSignUpAge = 5 * time.Second

// AttemptLimiter throttles sign-in per identifier. Satisfied by
// *ratelimit.Limiter.
type AttemptLimiter interface {
	Check(identifier string) ratelimit.Result
	Reset(identifier string)
}

// WorkspaceLister returns the distinct workspaces a user owns or belongs to.
type WorkspaceLister interface {
	WorkspaceIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// InviteRedeemer resumes an invitation stashed for a client before it
// signed in. RedeemPending reports ok=false when nothing was pending.
type InviteRedeemer interface {
	RedeemPending(ctx context.Context, clientKey string, user *User) (route Route, ok bool, err error)
	DiscardPending(ctx context.Context, clientKey string) error
}

// State is the client's authentication state.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// WorkflowConfig holds Workflow settings.
type WorkflowConfig struct {
	// ResetRedirectURL is the page that receives recovery links.
	ResetRedirectURL string
}

// Workflow holds the collaborators shared by every Client.
type Workflow struct {
	provider      Provider
	limiter       AttemptLimiter
	workspaces    WorkspaceLister
	invites       InviteRedeemer
	resetRedirect string
	now           func() time.Time
}

// NewWorkflow creates a workflow. invites may be nil.
func NewWorkflow(provider Provider, limiter AttemptLimiter, workspaces WorkspaceLister, invites InviteRedeemer, cfg WorkflowConfig) *Workflow {
	return &Workflow{
		provider:      provider,
		limiter:       limiter,
		workspaces:    workspaces,
		invites:       invites,
		resetRedirect: cfg.ResetRedirectURL,
		now:           time.Now,
	}
}

// Provider returns the identity provider the workflow delegates to.
func (w *Workflow) Provider() Provider {
	return w.provider
}

// Client is one browser's view of authentication. Its session mirrors
// provider events for the same account; it never validates tokens itself.
// Close must be called when the client is no longer used.
type Client struct {
	wf        *Workflow
	clientKey string

	mu      sync.Mutex
	state   State
	session *Session

	unsubscribe func()
}

// NewClient creates a client for clientKey, starting from an existing
// session when one is known.
func (w *Workflow) NewClient(clientKey string, session *Session) *Client {
	c := &Client{wf: w, clientKey: clientKey}
	if session != nil {
		c.session = session
		c.state = StateAuthenticated
	}
	c.unsubscribe = w.provider.OnAuthStateChange(c.onEvent)
	return c
}

// Close stops mirroring provider events.
func (c *Client) Close() {
	c.unsubscribe()
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the mirrored session, or nil.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// onEvent mirrors a provider event when it concerns this client's own
// access token. SignedIn events are never adopted: a client authenticates
// only from the session its own provider call returns, so another
// browser's sign-in to the same account cannot land here.
func (c *Client) onEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case EventTokenRefreshed, EventUserUpdated:
		if c.session != nil && ev.Session != nil && ev.UserID == c.session.User.ID &&
			ev.AccessToken == c.session.AccessToken {
			c.session = ev.Session
		}
	case EventSignedOut:
		if c.session != nil && ev.UserID == c.session.User.ID &&
			(ev.AccessToken == "" || ev.AccessToken == c.session.AccessToken) {
			c.session = nil
			c.state = StateAnonymous
		}
	}
}

func (c *Client) beginAuthenticating() {
	c.mu.Lock()
	c.state = StateAuthenticating
	c.mu.Unlock()
}

// settle finishes an authentication attempt with the session the
// provider call returned. A nil session ends the attempt in the state the
// client held before it: authenticated with its existing session, or
// anonymous.
func (c *Client) settle(session *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session != nil {
		c.session = session
		c.state = StateAuthenticated
		return
	}
	if c.session != nil {
		c.state = StateAuthenticated
	} else {
		c.state = StateAnonymous
	}
}

func (c *Client) clear() {
	c.mu.Lock()
	c.session = nil
	c.state = StateAnonymous
	c.mu.Unlock()
}

// --- Operations ---

// SignUp registers an account. An answer that looks like an existing
// account (no identities, or unconfirmed and older than a few seconds)
// is reported as KindUserAlreadyExists.
func (c *Client) SignUp(ctx context.Context, email, password, username string) (*User, error) {
	c.beginAuthenticating()

	res, err := c.wf.provider.SignUp(ctx, email, password, map[string]string{"username": username})
	if err != nil {
		c.settle(nil)
		return nil, mapProviderError(err)
	}
	if res.User == nil || isDuplicateSignUp(res.User, c.wf.now()) {
		c.settle(nil)
		return nil, apperror.NewKind(apperror.KindUserAlreadyExists, nil)
	}

	c.settle(res.Session)
	return res.User, nil
}

func isDuplicateSignUp(u *User, now time.Time) bool {
	if len(u.Identities) == 0 {
		return true
	}
	return !u.IsConfirmed() && now.Sub(u.CreatedAt) > duplicateSignUpAge
}

// SignInResult is a successful sign-in and where to go next.
type SignInResult struct {
	Session *Session
	Route   Route
}

// SignIn authenticates with e-mail and password. A blocked identifier
// fails with KindRateLimited before the provider is contacted.
func (c *Client) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	identifier := normalizeEmail(email)

	if res := c.wf.limiter.Check(identifier); !res.Allowed {
		minutes := res.RetryAfter(c.wf.now())
		return nil, apperror.NewKindMessage(apperror.KindRateLimited,
			fmt.Sprintf("Too many attempts. Please try again in %d minutes.", minutes))
	}

	c.beginAuthenticating()

	session, err := c.wf.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		c.settle(nil)
		return nil, mapProviderError(err)
	}

	c.wf.limiter.Reset(identifier)
	c.settle(session)

	route, err := c.ResolveRoute(ctx, &session.User)
	if err != nil {
		slog.Warn("resolving post-login route failed",
			slog.String("user_id", session.User.ID),
			slog.Any("error", err),
		)
		route = Route{Kind: RouteWorkspaceSelection}
	}

	return &SignInResult{Session: session, Route: route}, nil
}

// ResolveRoute decides where user lands after signing in. A pending
// invitation for this client is redeemed first and its route wins.
// Otherwise the count of distinct workspaces decides.
func (c *Client) ResolveRoute(ctx context.Context, user *User) (Route, error) {
	if c.wf.invites != nil && c.clientKey != "" {
		route, ok, err := c.wf.invites.RedeemPending(ctx, c.clientKey, user)
		if err != nil {
			slog.Warn("redeeming pending invitation failed",
				slog.String("user_id", user.ID),
				slog.String("kind", apperror.KindOf(err).String()),
				slog.Any("error", err),
			)
		} else if ok {
			return route, nil
		}
	}

	ids, err := c.wf.workspaces.WorkspaceIDsForUser(ctx, user.ID)
	if err != nil {
		return Route{}, fmt.Errorf("listing workspaces: %w", err)
	}
	return routeForWorkspaces(ids), nil
}

// SignOut ends this client's session. Provider failures are logged and
// never returned: the local state is cleared regardless.
func (c *Client) SignOut(ctx context.Context) {
	if s := c.Session(); s != nil {
		if err := c.wf.provider.SignOut(ctx, s.AccessToken, ScopeLocal); err != nil {
			slog.Warn("remote sign-out failed", slog.String("user_id", s.User.ID), slog.Any("error", err))
		}
	}
	c.clear()
	c.discardPendingInvite(ctx)
}

func (c *Client) discardPendingInvite(ctx context.Context) {
	if c.wf.invites == nil || c.clientKey == "" {
		return
	}
	if err := c.wf.invites.DiscardPending(ctx, c.clientKey); err != nil {
		slog.Warn("discarding pending invitation failed", slog.Any("error", err))
	}
}

// RequestPasswordReset asks the provider to mail a recovery link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	if err := c.wf.provider.ResetPasswordForEmail(ctx, strings.TrimSpace(email), c.wf.resetRedirect); err != nil {
		return mapProviderError(err)
	}
	return nil
}

// RecoveryLink is what a recovery e-mail link carries: a token hash, or a
// legacy access/refresh token pair from the URL fragment.
type RecoveryLink struct {
	TokenHash    string
	AccessToken  string
	RefreshToken string
}

// ConfirmPasswordReset establishes a recovery session from link, sets the
// new password and signs the account out everywhere.
func (c *Client) ConfirmPasswordReset(ctx context.Context, link RecoveryLink, newPassword string) error {
	if msg := form.Password.Validate(newPassword); msg != "" {
		return apperror.NewKindMessage(apperror.KindWeakPassword, msg)
	}

	var (
		recovery *Session
		err      error
	)
	switch {
	case link.TokenHash != "":
		recovery, err = c.wf.provider.VerifyOTP(ctx, link.TokenHash, OTPRecovery)
	case link.AccessToken != "" && link.RefreshToken != "":
		recovery, err = c.wf.provider.SetSession(ctx, link.AccessToken, link.RefreshToken)
	default:
		return newInvalidResetLink(nil)
	}
	if err != nil {
		kind := mapProviderError(err).Kind
		if kind == apperror.KindUnexpected {
			return newInvalidResetLink(err)
		}
		return apperror.NewKind(kind, err)
	}

	if _, err := c.wf.provider.UpdateUser(ctx, recovery.AccessToken, UserUpdate{Password: newPassword}); err != nil {
		return mapProviderError(err)
	}

	if err := c.wf.provider.SignOut(ctx, recovery.AccessToken, ScopeGlobal); err != nil {
		slog.Warn("global sign-out after password reset failed",
			slog.String("user_id", recovery.User.ID),
			slog.Any("error", err),
		)
	}

	c.clear()
	c.discardPendingInvite(ctx)
	return nil
}

// CheckSession re-validates the client's session with the provider, as the
// web app does on load and then every inactivity interval. A live session
// is replaced by the provider's current copy. A session the provider no
// longer knows has timed out: the client becomes anonymous and the error is
// KindSessionExpired, redirecting to the timed-out login. Provider failures
// keep the session.
func (c *Client) CheckSession(ctx context.Context) error {
	s := c.Session()
	if s == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	live, err := c.wf.provider.GetSession(ctx, s.AccessToken)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("checking session: %w", err))
	}
	if live == nil {
		slog.Info("session timed out")
		c.clear()
		return newSessionExpired(nil)
	}

	c.settle(live)
	return nil
}

// ConfirmSignUp redeems a sign-up confirmation link, which also signs the
// user in, and resolves where they land.
func (c *Client) ConfirmSignUp(ctx context.Context, tokenHash string) (*SignInResult, error) {
	if tokenHash == "" {
		return nil, newInvalidConfirmLink(nil)
	}

	session, err := c.wf.provider.VerifyOTP(ctx, tokenHash, OTPSignup)
	if err != nil {
		return nil, newInvalidConfirmLink(err)
	}
	c.settle(session)

	route, err := c.ResolveRoute(ctx, &session.User)
	if err != nil {
		slog.Warn("resolving post-confirmation route failed",
			slog.String("user_id", session.User.ID),
			slog.Any("error", err),
		)
		route = Route{Kind: RouteWorkspaceSelection}
	}
	return &SignInResult{Session: session, Route: route}, nil
}

// Refresh rotates the refresh token into a new session for this client.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	session, err := c.wf.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		c.clear()
		return nil, newSessionExpired(err)
	}
	c.settle(session)
	return session, nil
}
