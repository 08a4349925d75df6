package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/keyxmakerx/juken/internal/apperror"
)

func TestKindFromProviderCode(t *testing.T) {
	tests := []struct {
		code, message string
		want          apperror.Kind
	}{
		{"invalid_credentials", "", apperror.KindInvalidCredentials},
		{"user_not_found", "", apperror.KindInvalidCredentials},
		{"email_not_confirmed", "", apperror.KindEmailNotConfirmed},
		{"user_already_exists", "", apperror.KindUserAlreadyExists},
		{"email_exists", "", apperror.KindUserAlreadyExists},
		{"weak_password", "", apperror.KindWeakPassword},
		{"email_address_invalid", "", apperror.KindInvalidEmail},
		{"validation_failed", "", apperror.KindInvalidEmail},
		{"over_request_rate_limit", "", apperror.KindRateLimited},
		{"over_email_send_rate_limit", "", apperror.KindRateLimited},
		{"", "Invalid login credentials", apperror.KindInvalidCredentials},
		{"", "Email not confirmed", apperror.KindEmailNotConfirmed},
		{"", "Invalid email address format", apperror.KindInvalidEmail},
		{"something_new", "boom", apperror.KindUnexpected},
		{"", "", apperror.KindUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.message, func(t *testing.T) {
			if got := KindFromProviderCode(tt.code, tt.message); got != tt.want {
				t.Errorf("KindFromProviderCode(%q, %q) = %v, want %v", tt.code, tt.message, got, tt.want)
			}
		})
	}
}

func TestMapProviderError(t *testing.T) {
	pe := &ProviderError{Code: "user_not_found", Message: "no such user"}
	appErr := mapProviderError(fmt.Errorf("wrapped: %w", pe))
	if appErr.Kind != apperror.KindInvalidCredentials {
		t.Errorf("kind = %v, want invalid_credentials", appErr.Kind)
	}
	if appErr.Message != "Email or password is incorrect." {
		t.Errorf("message = %q", appErr.Message)
	}
	if !errors.Is(appErr, pe) {
		t.Error("expected provider error kept as internal cause")
	}

	if got := mapProviderError(errors.New("dial tcp: refused")).Kind; got != apperror.KindUnexpected {
		t.Errorf("plain error kind = %v, want unexpected", got)
	}
}
