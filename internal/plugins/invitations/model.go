// Package invitations issues and redeems workspace invitation links. A
// link carries an opaque token that is valid until it expires or its use
// count reaches the limit. Redeeming adds the user as a workspace member;
// an anonymous visitor has the token parked against their client key until
// they sign up or sign in.
package invitations

import (
	"time"
)

// Token is an invitation as stored in invitation_tokens, with the target
// workspace's name joined in for display.
type Token struct {
	Token         string     `json:"token"`
	WorkspaceID   string     `json:"workspace_id"`
	WorkspaceName string     `json:"workspace_name"`
	CreatedBy     string     `json:"created_by"`
	ExpiresAt     time.Time  `json:"expires_at"`
	MaxUses       int        `json:"max_uses"`
	CurrentUses   int        `json:"current_uses"`
	UsedBy        *string    `json:"used_by,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Status reports where a token stands. Preview answers valid; a
// redemption ends already_member, joined or pending_signup. Invalid tokens
// are errors (invite_not_found, invite_expired, invite_exhausted).
type Status string

const (
	StatusValid         Status = "valid"
	StatusAlreadyMember Status = "already_member"
	StatusJoined        Status = "joined"
	StatusPendingSignup Status = "pending_signup"
)

// Outcome is the terminal state of a successful redemption attempt and
// where the web app should go next.
type Outcome struct {
	Status        Status `json:"status"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	Route         string `json:"redirect"`
}

// Pending is an invitation parked for a client that is not signed in yet.
type Pending struct {
	Token         string `json:"token"`
	WorkspaceName string `json:"workspace_name"`
}

// CreateOptions tunes a new invitation. Zero values take the defaults.
type CreateOptions struct {
	TTL     time.Duration
	MaxUses int
}

// --- Request DTOs (bound from HTTP requests) ---

// CreateInvitationRequest is the body of POST /api/workspaces/:id/invitations.
type CreateInvitationRequest struct {
	ExpiresInHours int `json:"expires_in_hours" validate:"omitempty,min=1,max=168"`
	MaxUses        int `json:"max_uses" validate:"omitempty,min=1,max=20"`
}

// --- Responses ---

// CreatedResponse is returned when an invitation is created.
type CreatedResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxUses   int       `json:"max_uses"`
}

// PendingResponse describes the invitation parked for this client. The
// sign-up page uses it to show which workspace the new account will join.
type PendingResponse struct {
	WorkspaceName string `json:"workspace_name"`
	Route         string `json:"redirect"`
}

// PreviewResponse describes a token without redeeming it.
type PreviewResponse struct {
	Status        Status    `json:"status"`
	WorkspaceName string    `json:"workspace_name"`
	ExpiresAt     time.Time `json:"expires_at"`
}
