package auth

import "context"

// Provider is the identity backend contract. Failures are *ProviderError.
// Implementations deliver Events to OnAuthStateChange subscribers
// synchronously, before the triggering call returns.
type Provider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string, scope SignOutScope) error

	// GetSession returns (nil, nil) when the token names no live session.
	GetSession(ctx context.Context, accessToken string) (*Session, error)

	// OnAuthStateChange registers fn and returns a function that removes it.
	OnAuthStateChange(fn func(Event)) (unsubscribe func())

	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, accessToken string, update UserUpdate) (*User, error)
	VerifyOTP(ctx context.Context, tokenHash string, typ OTPType) (*Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
}
