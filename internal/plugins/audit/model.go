// Package audit records membership activity inside a workspace: which
// invitations were issued and who joined through them. Entries are
// observations only; a failed write never blocks the action being
// recorded. Owners read the feed at GET /api/workspaces/:id/activity.
package audit

import "time"

// Action strings follow "resource.verb".
const (
	ActionInvitationCreated = "invitation.created"
	ActionMemberJoined      = "member.joined"
)

// Entry is a single recorded action.
type Entry struct {
	ID          int64          `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	UserID      string         `json:"user_id"`
	Action      string         `json:"action"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`

	// Username is joined from users at query time.
	Username string `json:"username,omitempty"`
}

// Page is one page of the activity feed.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
}
