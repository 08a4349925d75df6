// Package auth handles user authentication, session management, and password
// security for Juken. It defines the identity Provider contract, a local
// implementation backed by MariaDB and Redis, and the per-client sign-in
// workflow that mirrors provider events and decides where a user lands
// after signing in.
//
// This is a CORE plugin: every other plugin reads the session from here.
package auth

import (
	"time"
)

// User is an account as seen by the rest of the application.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // Never expose in JSON responses.
	Identities   []Identity `json:"identities"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// IsConfirmed reports whether the e-mail address has been confirmed.
func (u *User) IsConfirmed() bool {
	return u.ConfirmedAt != nil
}

// Identity is one linked sign-in method. Local accounts carry a single
// "email" identity; a duplicate sign-up answer carries none.
type Identity struct {
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an authenticated session issued by the provider.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// SignUpResult is the provider's answer to a sign-up. Session is nil when
// the account still needs e-mail confirmation.
type SignUpResult struct {
	User    *User
	Session *Session
}

// UserUpdate lists the mutable account attributes.
type UserUpdate struct {
	Password string
}

// OTPType selects what a one-time token proves.
type OTPType string

const (
	OTPRecovery OTPType = "recovery"
	OTPSignup   OTPType = "signup"
)

// SignOutScope selects which sessions a sign-out ends.
type SignOutScope string

const (
	// ScopeLocal ends only the presented session.
	ScopeLocal SignOutScope = "local"
	// ScopeGlobal ends every session of the user.
	ScopeGlobal SignOutScope = "global"
)

// EventType names an auth state change.
type EventType string

const (
	EventSignedIn         EventType = "SIGNED_IN"
	EventSignedOut        EventType = "SIGNED_OUT"
	EventTokenRefreshed   EventType = "TOKEN_REFRESHED"
	EventUserUpdated      EventType = "USER_UPDATED"
	EventPasswordRecovery EventType = "PASSWORD_RECOVERY"
)

// Event is delivered to OnAuthStateChange subscribers. Session is nil for
// EventSignedOut.
type Event struct {
	Type    EventType
	UserID  string
	Session *Session

	// AccessToken is the session the event concerns as it was before the
	// change: the ended session for EventSignedOut (empty for a global
	// sign-out), the replaced session for EventTokenRefreshed and the
	// updated session for EventUserUpdated.
	AccessToken string
}

// --- Request DTOs (bound from HTTP requests) ---

// SignUpRequest is the body of POST /api/auth/signup.
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Username        string `json:"username"`
}

// SignInRequest is the body of POST /api/auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetRequest is the body of POST /api/auth/password-reset.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest is the body of POST
// /api/auth/password-reset/confirm. Either TokenHash or the token pair
// from a legacy fragment link is set.
type PasswordResetConfirmRequest struct {
	TokenHash       string `json:"token_hash"`
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// --- Responses ---

// SessionResponse is the body returned for GET /api/auth/session.
type SessionResponse struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`

	// CheckIntervalSeconds is how often the web app should re-check the
	// session to notice an inactivity timeout.
	CheckIntervalSeconds int `json:"check_interval_seconds"`
}

// RedirectResponse tells the web app where to navigate next.
type RedirectResponse struct {
	Redirect string `json:"redirect"`
}
