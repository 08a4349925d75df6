package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keyxmakerx/juken/internal/apperror"
)

// --- Fakes ---

type storedToken struct {
	userID    string
	purpose   OTPType
	expiresAt time.Time
	used      bool
}

// memUsers is an in-memory UserRepository.
type memUsers struct {
	mu     sync.Mutex
	byID   map[string]*User
	tokens map[string]*storedToken

	createErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*User{}, tokens: map[string]*storedToken{}}
}

func (m *memUsers) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.byID {
		if u.Email == user.Email {
			return apperror.NewConflict("email already registered")
		}
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].LastLoginAt = &at
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID].PasswordHash = hash
	return nil
}

func (m *memUsers) ConfirmEmail(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID].ConfirmedAt = &at
	return nil
}

func (m *memUsers) CreateOneTimeToken(_ context.Context, userID string, purpose OTPType, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenHash] = &storedToken{userID: userID, purpose: purpose, expiresAt: expiresAt}
	return nil
}

func (m *memUsers) ConsumeOneTimeToken(_ context.Context, tokenHash string, purpose OTPType, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[tokenHash]
	if !ok || tok.used || tok.purpose != purpose || !now.Before(tok.expiresAt) {
		return "", apperror.NewNotFound("token not found")
	}
	tok.used = true
	return tok.userID, nil
}

// captureMail records sent mail.
type captureMail struct {
	configured bool
	sendErr    error
	sent       []string
}

func (m *captureMail) SendMail(_ context.Context, _ []string, _ string, body string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, body)
	return nil
}

func (m *captureMail) IsConfigured(_ context.Context) bool { return m.configured }

// linkToken pulls the token_hash query parameter out of the last mail.
func (m *captureMail) linkToken(t *testing.T) string {
	t.Helper()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	body := m.sent[len(m.sent)-1]
	for _, field := range strings.Fields(body) {
		if u, err := url.Parse(field); err == nil && u.Query().Get("token_hash") != "" {
			return u.Query().Get("token_hash")
		}
	}
	t.Fatalf("no link in mail: %q", body)
	return ""
}

type providerFixture struct {
	provider *LocalProvider
	users    *memUsers
	mail     *captureMail
	events   []Event
}

func newProviderFixture(t *testing.T, requireConfirmation bool) *providerFixture {
	t.Helper()
	store, _ := newTestSessionStore(t)
	f := &providerFixture{users: newMemUsers(), mail: &captureMail{configured: true}}
	f.provider = NewLocalProvider(f.users, store, f.mail, LocalProviderConfig{
		RequireEmailConfirmation: requireConfirmation,
		ConfirmURL:               "https://juken.example/auth/confirm",
		OneTimeTokenTTL:          time.Hour,
	})
	f.provider.OnAuthStateChange(func(ev Event) { f.events = append(f.events, ev) })
	return f
}

func providerCode(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// --- Tests ---

func TestLocalProvider_SignUpWithoutConfirmation(t *testing.T) {
	f := newProviderFixture(t, false)
	ctx := context.Background()

	res, err := f.provider.SignUp(ctx, " Taro@Example.com ", "password123", map[string]string{"username": "<b>taro</b>"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.Session == nil {
		t.Fatal("expected a session when confirmation is off")
	}
	if res.User.Email != "taro@example.com" || res.User.Username != "taro" {
		t.Errorf("unexpected user %+v", res.User)
	}
	if len(res.User.Identities) != 1 {
		t.Errorf("expected one identity, got %d", len(res.User.Identities))
	}
	if len(f.events) != 1 || f.events[0].Type != EventSignedIn {
		t.Errorf("expected one SIGNED_IN event, got %+v", f.events)
	}
}

func TestLocalProvider_SignUpDuplicateIsObfuscated(t *testing.T) {
	f := newProviderFixture(t, true)
	ctx := context.Background()

	first, err := f.provider.SignUp(ctx, "taro@example.com", "password123", nil)
	if err != nil {
		t.Fatalf("first SignUp: %v", err)
	}
	second, err := f.provider.SignUp(ctx, "taro@example.com", "password456", nil)
	if err != nil {
		t.Fatalf("duplicate SignUp should not error, got %v", err)
	}
	if len(second.User.Identities) != 0 {
		t.Error("duplicate answer must carry no identities")
	}
	if second.User.ID == first.User.ID {
		t.Error("duplicate answer must not reveal the real user ID")
	}
	if len(f.mail.sent) != 1 {
		t.Errorf("expected only the first sign-up to send mail, sent %d", len(f.mail.sent))
	}
}

func TestLocalProvider_SignUpValidation(t *testing.T) {
	f := newProviderFixture(t, true)
	tests := []struct {
		name, email, password, code string
	}{
		{"bad email", "not-an-email", "password123", codeEmailInvalid},
		{"short password", "taro@example.com", "short", codeWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.provider.SignUp(context.Background(), tt.email, tt.password, nil)
			if got := providerCode(err); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestLocalProvider_ConfirmationFlow(t *testing.T) {
	f := newProviderFixture(t, true)
	ctx := context.Background()

	res, err := f.provider.SignUp(ctx, "taro@example.com", "password123", nil)
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.Session != nil {
		t.Fatal("no session before confirmation")
	}

	if _, err := f.provider.SignInWithPassword(ctx, "taro@example.com", "password123"); providerCode(err) != codeEmailNotConfirmed {
		t.Fatalf("expected email_not_confirmed, got %v", err)
	}

	token := f.mail.linkToken(t)
	session, err := f.provider.VerifyOTP(ctx, token, OTPSignup)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if session.User.ID != res.User.ID {
		t.Error("session for wrong user")
	}

	if _, err := f.provider.VerifyOTP(ctx, token, OTPSignup); providerCode(err) != codeOTPExpired {
		t.Errorf("token reuse should fail with otp_expired, got %v", err)
	}
	if _, err := f.provider.SignInWithPassword(ctx, "taro@example.com", "password123"); err != nil {
		t.Errorf("sign in after confirmation: %v", err)
	}
}

func TestLocalProvider_SignInFailuresShareCode(t *testing.T) {
	f := newProviderFixture(t, false)
	ctx := context.Background()
	if _, err := f.provider.SignUp(ctx, "taro@example.com", "password123", nil); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	_, unknown := f.provider.SignInWithPassword(ctx, "hanako@example.com", "password123")
	_, wrong := f.provider.SignInWithPassword(ctx, "taro@example.com", "wrong-password")
	if providerCode(unknown) != codeInvalidCredentials || providerCode(wrong) != codeInvalidCredentials {
		t.Errorf("expected invalid_credentials for both, got %v / %v", unknown, wrong)
	}
	if unknown.Error() != wrong.Error() {
		t.Error("unknown email and wrong password must be indistinguishable")
	}
}

func TestLocalProvider_SignOutScopes(t *testing.T) {
	f := newProviderFixture(t, false)
	ctx := context.Background()
	f.provider.SignUp(ctx, "taro@example.com", "password123", nil)

	a, _ := f.provider.SignInWithPassword(ctx, "taro@example.com", "password123")
	b, _ := f.provider.SignInWithPassword(ctx, "taro@example.com", "password123")
	c, _ := f.provider.SignInWithPassword(ctx, "taro@example.com", "password123")

	if err := f.provider.SignOut(ctx, a.AccessToken, ScopeLocal); err != nil {
		t.Fatalf("local SignOut: %v", err)
	}
	last := f.events[len(f.events)-1]
	if last.Type != EventSignedOut || last.AccessToken != a.AccessToken {
		t.Errorf("unexpected event %+v", last)
	}
	if s, _ := f.provider.GetSession(ctx, b.AccessToken); s == nil {
		t.Fatal("local sign-out ended another session")
	}

	if err := f.provider.SignOut(ctx, b.AccessToken, ScopeGlobal); err != nil {
		t.Fatalf("global SignOut: %v", err)
	}
	if last := f.events[len(f.events)-1]; last.AccessToken != "" {
		t.Errorf("global sign-out event should carry no token, got %q", last.AccessToken)
	}
	if s, _ := f.provider.GetSession(ctx, c.AccessToken); s != nil {
		t.Error("global sign-out left a session alive")
	}

	if err := f.provider.SignOut(ctx, "unknown", ScopeLocal); err != nil {
		t.Errorf("unknown token should be ignored, got %v", err)
	}
}

func TestLocalProvider_RecoveryFlow(t *testing.T) {
	f := newProviderFixture(t, false)
	ctx := context.Background()
	f.provider.SignUp(ctx, "taro@example.com", "password123", nil)

	if err := f.provider.ResetPasswordForEmail(ctx, "nobody@example.com", "https://juken.example/reset"); err != nil {
		t.Fatalf("unknown email should succeed silently, got %v", err)
	}
	if len(f.mail.sent) != 0 {
		t.Fatal("no mail for unknown email")
	}

	if err := f.provider.ResetPasswordForEmail(ctx, "taro@example.com", "https://juken.example/reset"); err != nil {
		t.Fatalf("ResetPasswordForEmail: %v", err)
	}
	if !strings.Contains(f.mail.sent[0], "https://juken.example/reset?") || !strings.Contains(f.mail.sent[0], "type=recovery") {
		t.Errorf("unexpected mail body %q", f.mail.sent[0])
	}

	session, err := f.provider.VerifyOTP(ctx, f.mail.linkToken(t), OTPRecovery)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if last := f.events[len(f.events)-1]; last.Type != EventPasswordRecovery {
		t.Errorf("expected PASSWORD_RECOVERY, got %s", last.Type)
	}

	if _, err := f.provider.UpdateUser(ctx, session.AccessToken, UserUpdate{Password: "short"}); providerCode(err) != codeWeakPassword {
		t.Errorf("expected weak_password, got %v", err)
	}
	if _, err := f.provider.UpdateUser(ctx, session.AccessToken, UserUpdate{Password: "new-password-1"}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if _, err := f.provider.SignInWithPassword(ctx, "taro@example.com", "new-password-1"); err != nil {
		t.Errorf("sign in with new password: %v", err)
	}
}

func TestLocalProvider_RecoveryMailFailure(t *testing.T) {
	f := newProviderFixture(t, false)
	ctx := context.Background()
	f.provider.SignUp(ctx, "taro@example.com", "password123", nil)
	f.mail.sendErr = errors.New("smtp down")

	err := f.provider.ResetPasswordForEmail(ctx, "taro@example.com", "https://juken.example/reset")
	if providerCode(err) != codeUnexpectedFailure {
		t.Errorf("expected unexpected_failure, got %v", err)
	}
}

func TestLocalProvider_RecoveryTokenWrongType(t *testing.T) {
	f := newProviderFixture(t, false)
	ctx := context.Background()
	f.provider.SignUp(ctx, "taro@example.com", "password123", nil)
	f.provider.ResetPasswordForEmail(ctx, "taro@example.com", "https://juken.example/reset")

	if _, err := f.provider.VerifyOTP(ctx, f.mail.linkToken(t), OTPSignup); providerCode(err) != codeOTPExpired {
		t.Errorf("recovery token used as signup should fail, got %v", err)
	}
}

func TestLocalProvider_RefreshAndSetSession(t *testing.T) {
	f := newProviderFixture(t, false)
	ctx := context.Background()
	res, _ := f.provider.SignUp(ctx, "taro@example.com", "password123", nil)

	adopted, err := f.provider.SetSession(ctx, res.Session.AccessToken, res.Session.RefreshToken)
	if err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	if adopted.AccessToken != res.Session.AccessToken {
		t.Error("live session should be adopted as-is")
	}

	fresh, err := f.provider.RefreshSession(ctx, res.Session.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}
	last := f.events[len(f.events)-1]
	if last.Type != EventTokenRefreshed || last.AccessToken != res.Session.AccessToken {
		t.Errorf("unexpected event %+v", last)
	}

	if _, err := f.provider.RefreshSession(ctx, res.Session.RefreshToken); providerCode(err) != codeRefreshNotFound {
		t.Errorf("rotated token should fail, got %v", err)
	}

	// A dead access token falls back to the refresh token.
	viaRefresh, err := f.provider.SetSession(ctx, "dead", fresh.RefreshToken)
	if err != nil {
		t.Fatalf("SetSession via refresh: %v", err)
	}
	if viaRefresh.AccessToken == fresh.AccessToken {
		t.Error("expected a rotated session")
	}
}

func TestLocalProvider_UpdateUserWithoutSession(t *testing.T) {
	f := newProviderFixture(t, false)
	_, err := f.provider.UpdateUser(context.Background(), "missing", UserUpdate{Password: "password123"})
	if providerCode(err) != codeSessionNotFound {
		t.Errorf("expected session_not_found, got %v", err)
	}
}

func TestLocalProvider_Unsubscribe(t *testing.T) {
	f := newProviderFixture(t, false)
	var calls int
	unsubscribe := f.provider.OnAuthStateChange(func(Event) { calls++ })
	unsubscribe()
	unsubscribe()

	f.provider.SignUp(context.Background(), "taro@example.com", "password123", nil)
	if calls != 0 {
		t.Errorf("unsubscribed listener called %d times", calls)
	}
	if len(f.events) != 1 {
		t.Errorf("remaining listener should still fire, got %d events", len(f.events))
	}
}
