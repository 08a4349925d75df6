package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		Env:         "development",
		CORSOrigins: []string{"http://localhost:5173"},
		Auth:        config.AuthConfig{SecretKey: "test-secret"},
		RateLimit: config.RateLimitConfig{
			MaxAttempts: 5, IPMaxRequests: 20,
		},
	}
	return New(cfg, nil, nil)
}

// serve runs a GET against a route whose handler returns err.
func serve(t *testing.T, a *App, err error) (int, errorResponse) {
	t.Helper()
	a.Echo.GET("/api/test", func(echo.Context) error { return err })

	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/test", nil))

	var body errorResponse
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), decodeErr)
	}
	return rec.Code, body
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		want     errorResponse
	}{
		{
			name:     "kind error",
			err:      apperror.NewKind(apperror.KindInviteExpired, errors.New("cause")),
			wantCode: http.StatusGone,
			want: errorResponse{
				Error:   "Gone",
				Message: "This invitation link has expired.",
				Kind:    "invite_expired",
			},
		},
		{
			name: "redirect carried",
			err: func() error {
				e := apperror.NewKind(apperror.KindSessionExpired, nil)
				e.Redirect = "/login?timeout=true"
				return e
			}(),
			wantCode: http.StatusUnauthorized,
			want: errorResponse{
				Error:    "Unauthorized",
				Message:  "Your session has expired. Please sign in again.",
				Kind:     "session_expired",
				Redirect: "/login?timeout=true",
			},
		},
		{
			name:     "field errors",
			err:      apperror.NewFieldErrors(map[string]string{"email": "Email is required"}),
			wantCode: http.StatusUnprocessableEntity,
			want: errorResponse{
				Error:   "Unprocessable Entity",
				Message: "Please correct the highlighted fields.",
				Fields:  map[string]string{"email": "Email is required"},
			},
		},
		{
			name:     "internal cause hidden",
			err:      apperror.NewInternal(errors.New("dial tcp 10.0.0.5:3306: refused")),
			wantCode: http.StatusInternalServerError,
			want: errorResponse{
				Error:   "Internal Server Error",
				Message: apperror.SafeMessage(apperror.NewInternal(nil)),
			},
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			want: errorResponse{
				Error:   "Internal Server Error",
				Message: "An unexpected error occurred.",
			},
		},
		{
			name:     "echo error",
			err:      echo.NewHTTPError(http.StatusForbidden, "invalid or missing CSRF token"),
			wantCode: http.StatusForbidden,
			want: errorResponse{
				Error:   "Forbidden",
				Message: "invalid or missing CSRF token",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, newTestApp(t), tt.err)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			if diff := cmp.Diff(tt.want, body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	a := newTestApp(t)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var body errorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "Not Found" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestValidator_UsesJSONNames(t *testing.T) {
	type request struct {
		Name    string `json:"name" validate:"required"`
		MaxUses int    `json:"max_uses" validate:"omitempty,min=1,max=20"`
	}

	v := newRequestValidator()
	if err := v.Validate(&request{Name: "ok", MaxUses: 3}); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	err := v.Validate(&request{MaxUses: 50})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != http.StatusUnprocessableEntity {
		t.Errorf("code = %d", appErr.Code)
	}
	if appErr.Fields["name"] == "" || appErr.Fields["max_uses"] == "" {
		t.Errorf("expected name and max_uses errors, got %v", appErr.Fields)
	}
}
