package apperror

import "net/http"

// Kind is the closed set of auth and invitation failure categories. The
// categories are coarse on purpose: "unknown email" and "wrong password"
// share KindInvalidCredentials.
type Kind int

const (
	KindNone Kind = iota

	// Authentication.
	KindInvalidCredentials
	KindEmailNotConfirmed
	KindUserAlreadyExists
	KindWeakPassword
	KindInvalidEmail
	KindRateLimited
	KindSessionExpired
	KindUnexpected

	// Invitations.
	KindInviteNotFound
	KindInviteExpired
	KindInviteExhausted
	KindInviteProcessingFailed
)

var kindNames = map[Kind]string{
	KindInvalidCredentials:     "invalid_credentials",
	KindEmailNotConfirmed:      "email_not_confirmed",
	KindUserAlreadyExists:      "user_already_exists",
	KindWeakPassword:           "weak_password",
	KindInvalidEmail:           "invalid_email",
	KindRateLimited:            "rate_limited",
	KindSessionExpired:         "session_expired",
	KindUnexpected:             "unexpected",
	KindInviteNotFound:         "invite_not_found",
	KindInviteExpired:          "invite_expired",
	KindInviteExhausted:        "invite_exhausted",
	KindInviteProcessingFailed: "invite_processing_failed",
}

var kindMessages = map[Kind]string{
	KindInvalidCredentials:     "Email or password is incorrect.",
	KindEmailNotConfirmed:      "This email address has not been confirmed. Please check the confirmation email sent at sign-up.",
	KindUserAlreadyExists:      "This email address is already in use.",
	KindWeakPassword:           "Password must be at least 8 characters.",
	KindInvalidEmail:           "Please enter a valid email address.",
	KindRateLimited:            "Too many attempts. Please try again later.",
	KindSessionExpired:         "Your session has expired. Please sign in again.",
	KindUnexpected:             "An unexpected error occurred. Please try again.",
	KindInviteNotFound:         "This invitation link was not found.",
	KindInviteExpired:          "This invitation link has expired.",
	KindInviteExhausted:        "This invitation link has already been used.",
	KindInviteProcessingFailed: "Invitation processing failed. Please try again.",
}

// String returns the wire name of the kind ("" for KindNone).
func (k Kind) String() string {
	return kindNames[k]
}

// Message returns the fixed user-facing message for the kind.
func (k Kind) Message() string {
	if m, ok := kindMessages[k]; ok {
		return m
	}
	return kindMessages[KindUnexpected]
}

// HTTPStatus maps the kind onto a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidCredentials, KindSessionExpired:
		return http.StatusUnauthorized
	case KindEmailNotConfirmed:
		return http.StatusForbidden
	case KindUserAlreadyExists:
		return http.StatusConflict
	case KindWeakPassword, KindInvalidEmail:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindInviteNotFound:
		return http.StatusNotFound
	case KindInviteExpired, KindInviteExhausted:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
