package invitations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/plugins/auth"
)

// callHandler runs fn for method /api/invitations/tok with an optional
// session and client key already resolved by middleware.
func callHandler(t *testing.T, fn echo.HandlerFunc, method string, session *auth.Session, clientKey string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(method, "/api/invitations/tok", nil), rec)
	c.SetParamNames("token")
	c.SetParamValues("tok")
	if session != nil {
		c.Set("auth_session", session)
		c.Set("auth_user_id", session.User.ID)
	}
	if clientKey != "" {
		c.Set("client_key", clientKey)
	}
	return rec, fn(c)
}

func TestHandler_PreviewDoesNotWrite(t *testing.T) {
	f := newServiceFixture(t, validToken())
	h := NewHandler(f.svc)

	rec, err := callHandler(t, h.Preview, http.MethodGet, nil, "client-1")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	var got PreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != StatusValid || got.WorkspaceName != "Yamada" {
		t.Errorf("unexpected preview %+v", got)
	}
	if len(f.members.added) != 0 || f.repo.claims != 0 {
		t.Error("preview must not redeem")
	}
	if p, _ := f.pending.Peek(context.Background(), "client-1"); p != nil {
		t.Error("preview must not park the token")
	}
}

func TestHandler_PreviewExpired(t *testing.T) {
	tok := validToken()
	tok.ExpiresAt = testNow.Add(-1)
	h := NewHandler(newServiceFixture(t, tok).svc)

	_, err := callHandler(t, h.Preview, http.MethodGet, nil, "")
	if apperror.KindOf(err) != apperror.KindInviteExpired {
		t.Errorf("expected invite_expired, got %v", err)
	}
}

func TestHandler_Redeem(t *testing.T) {
	session := &auth.Session{AccessToken: "at", User: auth.User{ID: "user-1", Email: "taro@example.com"}}

	tests := []struct {
		name    string
		session *auth.Session
		want    Outcome
	}{
		{
			name:    "signed in joins",
			session: session,
			want:    Outcome{Status: StatusJoined, WorkspaceID: "ws-1", WorkspaceName: "Yamada", Route: "/workspace/ws-1"},
		},
		{
			name: "anonymous parks",
			want: Outcome{Status: StatusPendingSignup, WorkspaceID: "ws-1", WorkspaceName: "Yamada", Route: "/signup?inviteToken=tok&workspaceName=Yamada"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newServiceFixture(t, validToken()).svc)

			rec, err := callHandler(t, h.Redeem, http.MethodPost, tt.session, "client-1")
			if err != nil {
				t.Fatalf("Redeem: %v", err)
			}
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var got Outcome
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("outcome mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandler_Pending(t *testing.T) {
	f := newServiceFixture(t, validToken())
	h := NewHandler(f.svc)

	_, err := callHandler(t, h.Pending, http.MethodGet, nil, "client-1")
	if !apperror.IsNotFound(err) {
		t.Fatalf("before parking: err = %v, want 404", err)
	}

	if _, err := callHandler(t, h.Redeem, http.MethodPost, nil, "client-1"); err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	rec, err := callHandler(t, h.Pending, http.MethodGet, nil, "client-1")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	var got PendingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := PendingResponse{WorkspaceName: "Yamada", Route: "/signup?inviteToken=tok&workspaceName=Yamada"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	// Reading is not redeeming; sign-in still finds the parked token.
	if p, _ := f.pending.Peek(context.Background(), "client-1"); p == nil {
		t.Error("pending read consumed the invitation")
	}

	if _, err := callHandler(t, h.Pending, http.MethodGet, nil, "client-2"); !apperror.IsNotFound(err) {
		t.Errorf("other client: err = %v, want 404", err)
	}
}
