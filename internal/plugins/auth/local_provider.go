package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/form"
	"github.com/keyxmakerx/juken/internal/plugins/smtp"
	"github.com/keyxmakerx/juken/internal/sanitize"
)

// LocalProviderConfig holds LocalProvider settings.
type LocalProviderConfig struct {
	// RequireEmailConfirmation keeps new accounts unable to sign in until
	// the confirmation link is followed.
	RequireEmailConfirmation bool

	// ConfirmURL is the page that receives sign-up confirmation links.
	ConfirmURL string

	// OneTimeTokenTTL bounds recovery and confirmation links.
	OneTimeTokenTTL time.Duration
}

// LocalProvider implements Provider with users in MariaDB, sessions in
// Redis and links delivered by e-mail.
type LocalProvider struct {
	users    UserRepository
	sessions *SessionStore
	mail     smtp.MailService
	cfg      LocalProviderConfig
	validate *validator.Validate
	now      func() time.Time

	mu          sync.RWMutex
	subscribers []subscriber
	nextSubID   int
}

type subscriber struct {
	id int
	fn func(Event)
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider creates a provider. mail may be nil, in which case links
// are not delivered.
func NewLocalProvider(users UserRepository, sessions *SessionStore, mail smtp.MailService, cfg LocalProviderConfig) *LocalProvider {
	if cfg.OneTimeTokenTTL <= 0 {
		cfg.OneTimeTokenTTL = time.Hour
	}
	return &LocalProvider{
		users:    users,
		sessions: sessions,
		mail:     mail,
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
	}
}

// --- Events ---

// OnAuthStateChange registers fn. Subscribers run synchronously in
// registration order on the goroutine that caused the change.
func (p *LocalProvider) OnAuthStateChange(fn func(Event)) func() {
	p.mu.Lock()
	p.nextSubID++
	id := p.nextSubID
	p.subscribers = append(p.subscribers, subscriber{id: id, fn: fn})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, s := range p.subscribers {
				if s.id == id {
					p.subscribers = append(p.subscribers[:i:i], p.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (p *LocalProvider) emit(ev Event) {
	// Copy under the lock; a subscriber may unsubscribe while running.
	p.mu.RLock()
	subs := make([]subscriber, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// --- Sign up / sign in ---

// SignUp creates an account. A taken e-mail answers like a hosted provider
// with confirmation enabled: a user with no identities and no error, so the
// address's existence is not disclosed to the caller's transport.
func (p *LocalProvider) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*SignUpResult, error) {
	email = normalizeEmail(email)
	if err := p.validate.Var(email, "required,email"); err != nil {
		return nil, &ProviderError{Code: codeEmailInvalid, Message: "Invalid email"}
	}
	if len(password) < form.PasswordMinLength {
		return nil, &ProviderError{Code: codeWeakPassword, Message: fmt.Sprintf("Password should be at least %d characters.", form.PasswordMinLength)}
	}

	now := p.now().UTC()

	// Existing address: answer with a fake, identity-less user.
	_, err := p.users.FindByEmail(ctx, email)
	if err == nil {
		return p.obfuscatedSignUp(email, now), nil
	}
	if !apperror.IsNotFound(err) {
		return nil, unexpected("looking up email", err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, unexpected("hashing password", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     sanitize.Text(metadata["username"]),
		PasswordHash: hash,
		Identities:   []Identity{{Provider: "email", CreatedAt: now}},
		CreatedAt:    now,
	}
	// Without confirmation the account is usable immediately.
	if !p.cfg.RequireEmailConfirmation {
		user.ConfirmedAt = &now
	}

	if err := p.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent sign-up for the same address.
		if apperror.IsConflict(err) {
			return p.obfuscatedSignUp(email, now), nil
		}
		return nil, unexpected("creating user", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))

	if p.cfg.RequireEmailConfirmation {
		if err := p.sendLink(ctx, user, OTPSignup, p.cfg.ConfirmURL,
			"Confirm your Juken account",
			"Follow this link to confirm your e-mail address:\n\n%s\n\nThe link expires in %s."); err != nil {
			slog.Warn("sending confirmation mail failed", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		return &SignUpResult{User: user}, nil
	}

	session, err := p.sessions.Create(ctx, *user)
	if err != nil {
		return nil, unexpected("creating session", err)
	}
	p.emit(Event{Type: EventSignedIn, UserID: user.ID, Session: session})
	return &SignUpResult{User: user, Session: session}, nil
}

// obfuscatedSignUp fabricates the answer for an address that is taken.
// The random ID matches no stored user.
func (p *LocalProvider) obfuscatedSignUp(email string, now time.Time) *SignUpResult {
	return &SignUpResult{User: &User{
		ID:         uuid.NewString(),
		Email:      email,
		Identities: []Identity{},
		CreatedAt:  now,
	}}
}

// SignInWithPassword authenticates and opens a session. An unknown e-mail
// and a wrong password produce the same error. Confirmation status is only
// revealed once the password has verified.
func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	user, err := p.users.FindByEmail(ctx, normalizeEmail(email))
	if apperror.IsNotFound(err) {
		return nil, &ProviderError{Code: codeInvalidCredentials, Message: "Invalid login credentials"}
	}
	if err != nil {
		return nil, unexpected("finding user", err)
	}

	if !verifyPassword(password, user.PasswordHash) {
		return nil, &ProviderError{Code: codeInvalidCredentials, Message: "Invalid login credentials"}
	}
	if p.cfg.RequireEmailConfirmation && !user.IsConfirmed() {
		return nil, &ProviderError{Code: codeEmailNotConfirmed, Message: "Email not confirmed"}
	}

	now := p.now().UTC()
	session, err := p.sessions.Create(ctx, *user)
	if err != nil {
		return nil, unexpected("creating session", err)
	}

	// Non-fatal: the session is already open.
	if err := p.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		slog.Warn("failed to update last login", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	p.emit(Event{Type: EventSignedIn, UserID: user.ID, Session: session})
	return session, nil
}

// SignOut ends the session named by accessToken, or every session of its
// user for ScopeGlobal. An unknown token is not an error.
func (p *LocalProvider) SignOut(ctx context.Context, accessToken string, scope SignOutScope) error {
	session, err := p.sessions.Get(ctx, accessToken)
	if errors.Is(err, errNoSession) {
		return nil
	}
	if err != nil {
		return unexpected("loading session", err)
	}

	// A local sign-out names the token so only its own client reacts.
	ev := Event{Type: EventSignedOut, UserID: session.User.ID}
	if scope == ScopeGlobal {
		err = p.sessions.DeleteAllForUser(ctx, session.User.ID)
	} else {
		err = p.sessions.Delete(ctx, session)
		ev.AccessToken = accessToken
	}
	if err != nil {
		return unexpected("deleting session", err)
	}

	p.emit(ev)
	return nil
}

// GetSession returns the live session, or (nil, nil) if there is none.
func (p *LocalProvider) GetSession(ctx context.Context, accessToken string) (*Session, error) {
	session, err := p.sessions.Get(ctx, accessToken)
	if errors.Is(err, errNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, unexpected("loading session", err)
	}
	return session, nil
}

// --- Recovery ---

// ResetPasswordForEmail mails a recovery link to email. An unknown address
// succeeds silently.
func (p *LocalProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	user, err := p.users.FindByEmail(ctx, normalizeEmail(email))
	if apperror.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return unexpected("finding user", err)
	}

	if err := p.sendLink(ctx, user, OTPRecovery, redirectTo,
		"Reset your Juken password",
		"Follow this link to choose a new password:\n\n%s\n\nThe link expires in %s. If you did not ask for this, ignore this e-mail."); err != nil {
		slog.Error("sending recovery mail failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return &ProviderError{Code: codeUnexpectedFailure, Message: "Error sending recovery email"}
	}
	return nil
}

// sendLink creates a one-time token and mails "<base>?token_hash=...&type=..."
// to the user. body is a format string taking the link and the lifetime.
func (p *LocalProvider) sendLink(ctx context.Context, user *User, typ OTPType, base, subject, body string) error {
	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	if err := p.users.CreateOneTimeToken(ctx, user.ID, typ, hashToken(token), p.now().Add(p.cfg.OneTimeTokenTTL).UTC()); err != nil {
		return err
	}

	if p.mail == nil || !p.mail.IsConfigured(ctx) {
		slog.Warn("mail is not configured, link not sent",
			slog.String("user_id", user.ID),
			slog.String("type", string(typ)),
		)
		return nil
	}

	link := buildLink(base, token, typ)
	if err := p.mail.SendMail(ctx, []string{user.Email}, subject, fmt.Sprintf(body, link, p.cfg.OneTimeTokenTTL)); err != nil {
		return fmt.Errorf("sending %s mail: %w", typ, err)
	}
	return nil
}

// buildLink appends token_hash and type to base, keeping any query it has.
func buildLink(base, token string, typ OTPType) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token_hash=" + url.QueryEscape(token) + "&type=" + string(typ)
	}
	q := u.Query()
	q.Set("token_hash", token)
	q.Set("type", string(typ))
	u.RawQuery = q.Encode()
	return u.String()
}

// VerifyOTP redeems a one-time token and opens a session. A recovery token
// emits EventPasswordRecovery; a sign-up token confirms the address and
// emits EventSignedIn.
func (p *LocalProvider) VerifyOTP(ctx context.Context, tokenHash string, typ OTPType) (*Session, error) {
	if typ != OTPRecovery && typ != OTPSignup {
		return nil, &ProviderError{Code: codeOTPExpired, Message: "Unsupported token type"}
	}

	now := p.now().UTC()
	userID, err := p.users.ConsumeOneTimeToken(ctx, hashToken(tokenHash), typ, now)
	if apperror.IsNotFound(err) {
		return nil, &ProviderError{Code: codeOTPExpired, Message: "Token has expired or is invalid"}
	}
	if err != nil {
		return nil, unexpected("consuming token", err)
	}

	if typ == OTPSignup {
		if err := p.users.ConfirmEmail(ctx, userID, now); err != nil {
			return nil, unexpected("confirming email", err)
		}
	}

	user, err := p.users.FindByID(ctx, userID)
	if err != nil {
		return nil, unexpected("loading user", err)
	}

	session, err := p.sessions.Create(ctx, *user)
	if err != nil {
		return nil, unexpected("creating session", err)
	}

	evType := EventSignedIn
	if typ == OTPRecovery {
		evType = EventPasswordRecovery
	}
	p.emit(Event{Type: evType, UserID: user.ID, Session: session})
	return session, nil
}

// SetSession adopts a token pair, as carried by a legacy fragment link.
// A live access token is used as-is; otherwise the refresh token is used.
func (p *LocalProvider) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	session, err := p.sessions.Get(ctx, accessToken)
	if err == nil && session.RefreshToken == refreshToken {
		p.emit(Event{Type: EventSignedIn, UserID: session.User.ID, Session: session})
		return session, nil
	}
	if err != nil && !errors.Is(err, errNoSession) {
		return nil, unexpected("loading session", err)
	}
	return p.RefreshSession(ctx, refreshToken)
}

// RefreshSession rotates refreshToken into a new session.
func (p *LocalProvider) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	session, previous, err := p.sessions.Refresh(ctx, refreshToken)
	if errors.Is(err, errNoSession) {
		return nil, &ProviderError{Code: codeRefreshNotFound, Message: "Invalid Refresh Token"}
	}
	if err != nil {
		return nil, unexpected("refreshing session", err)
	}
	p.emit(Event{Type: EventTokenRefreshed, UserID: session.User.ID, Session: session, AccessToken: previous})
	return session, nil
}

// UpdateUser changes attributes of the session's user.
func (p *LocalProvider) UpdateUser(ctx context.Context, accessToken string, update UserUpdate) (*User, error) {
	session, err := p.sessions.Get(ctx, accessToken)
	if errors.Is(err, errNoSession) {
		return nil, &ProviderError{Code: codeSessionNotFound, Message: "Auth session missing"}
	}
	if err != nil {
		return nil, unexpected("loading session", err)
	}

	if update.Password != "" {
		if len(update.Password) < form.PasswordMinLength {
			return nil, &ProviderError{Code: codeWeakPassword, Message: fmt.Sprintf("Password should be at least %d characters.", form.PasswordMinLength)}
		}
		hash, err := hashPassword(update.Password)
		if err != nil {
			return nil, unexpected("hashing password", err)
		}
		if err := p.users.UpdatePassword(ctx, session.User.ID, hash); err != nil {
			return nil, unexpected("updating password", err)
		}
		slog.Info("password updated", slog.String("user_id", session.User.ID))
	}

	user, err := p.users.FindByID(ctx, session.User.ID)
	if err != nil {
		return nil, unexpected("loading user", err)
	}

	user.PasswordHash = ""
	session.User = *user
	if err := p.sessions.Replace(ctx, session); err != nil {
		slog.Warn("refreshing session user failed", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	p.emit(Event{Type: EventUserUpdated, UserID: user.ID, Session: session, AccessToken: accessToken})
	return user, nil
}

// unexpected logs an infrastructure failure and hides it behind a generic
// provider error.
func unexpected(op string, err error) *ProviderError {
	slog.Error("auth provider failure", slog.String("op", op), slog.Any("error", err))
	return &ProviderError{Code: codeUnexpectedFailure, Message: "Unexpected failure, please try again"}
}
