package auth

import (
	"errors"
	"strings"

	"github.com/keyxmakerx/juken/internal/apperror"
)

// ProviderError is returned by a Provider. Code is a stable machine code,
// Message is provider prose and may change.
type ProviderError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return e.Code + ": " + e.Message
}

// Provider error codes produced by LocalProvider.
const (
	codeInvalidCredentials = "invalid_credentials"
	codeEmailNotConfirmed  = "email_not_confirmed"
	codeWeakPassword       = "weak_password"
	codeEmailInvalid       = "email_address_invalid"
	codeSessionNotFound    = "session_not_found"
	codeRefreshNotFound    = "refresh_token_not_found"
	codeOTPExpired         = "otp_expired"
	codeUnexpectedFailure  = "unexpected_failure"
)

var codeKinds = map[string]apperror.Kind{
	"invalid_credentials":        apperror.KindInvalidCredentials,
	"user_not_found":             apperror.KindInvalidCredentials,
	"email_not_confirmed":        apperror.KindEmailNotConfirmed,
	"user_already_exists":        apperror.KindUserAlreadyExists,
	"email_exists":               apperror.KindUserAlreadyExists,
	"weak_password":              apperror.KindWeakPassword,
	"email_address_invalid":      apperror.KindInvalidEmail,
	"validation_failed":          apperror.KindInvalidEmail,
	"over_request_rate_limit":    apperror.KindRateLimited,
	"over_email_send_rate_limit": apperror.KindRateLimited,
}

// Substrings some providers only put in the message.
var messageKinds = []struct {
	substr string
	kind   apperror.Kind
}{
	{"Invalid login credentials", apperror.KindInvalidCredentials},
	{"Email not confirmed", apperror.KindEmailNotConfirmed},
	{"Invalid email", apperror.KindInvalidEmail},
}

// KindFromProviderCode classifies a provider failure. Unknown codes fall
// back to message matching, then to KindUnexpected.
func KindFromProviderCode(code, message string) apperror.Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	for _, m := range messageKinds {
		if strings.Contains(message, m.substr) {
			return m.kind
		}
	}
	return apperror.KindUnexpected
}

// mapProviderError turns any provider failure into a Kind-carrying
// AppError, keeping the original as the internal cause.
func mapProviderError(err error) *apperror.AppError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return apperror.NewKind(KindFromProviderCode(pe.Code, pe.Message), err)
	}
	return apperror.NewKind(apperror.KindUnexpected, err)
}

// newInvalidResetLink is returned when a recovery link carries neither a
// usable token hash nor a usable token pair.
func newInvalidResetLink(internal error) *apperror.AppError {
	e := apperror.NewBadRequest("This password reset link is invalid or has expired. Please request a new one.")
	e.Type = "invalid_reset_link"
	e.Internal = internal
	return e
}

// newInvalidConfirmLink is returned for an unusable sign-up confirmation link.
func newInvalidConfirmLink(internal error) *apperror.AppError {
	e := apperror.NewBadRequest("This confirmation link is invalid or has expired.")
	e.Type = "invalid_confirmation_link"
	e.Internal = internal
	return e
}

// newSessionExpired is returned when a session has ended through
// inactivity. It sends the web app to the timed-out login page.
func newSessionExpired(internal error) *apperror.AppError {
	e := apperror.NewKind(apperror.KindSessionExpired, internal)
	e.Redirect = Route{Kind: RouteLogin, Timeout: true}.Path()
	return e
}
