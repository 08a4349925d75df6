// Package workspaces manages family workspaces and their membership. A
// workspace is the top-level unit a family shares: one owner who created
// it and any number of members who joined through an invitation.
//
// This is a CORE plugin: sign-in routing and invitations both depend on it.
package workspaces

import (
	"time"
)

// --- Role System ---

// Role is a user's standing in a workspace. Higher values carry more
// rights, so callers compare with >=:
//
//	if role >= RoleMember { /* may invite */ }
type Role int

const (
	// RoleNone means the user is not part of the workspace.
	RoleNone Role = 0

	// RoleMember joined through an invitation.
	RoleMember Role = 1

	// RoleOwner created the workspace. One per workspace.
	RoleOwner Role = 2
)

// RoleFromString converts a database role string to a Role.
func RoleFromString(s string) Role {
	switch s {
	case "owner":
		return RoleOwner
	case "member":
		return RoleMember
	default:
		return RoleNone
	}
}

// String returns the database value of the role.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleMember:
		return "member"
	default:
		return ""
	}
}

// MarshalText renders the role as its database value in JSON.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// --- Domain Models ---

// Workspace is a family's shared space.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is one user's membership row.
type Member struct {
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`

	// Joined from the users table for display.
	Username string `json:"username,omitempty"`
}

// WorkspaceContext is the resolved workspace and the caller's role in it.
// Injected into the Echo context by RequireWorkspaceAccess.
type WorkspaceContext struct {
	Workspace *Workspace
	Role      Role
}

// --- Request DTOs (bound from HTTP requests) ---

// CreateWorkspaceRequest is the body of POST /api/workspaces.
type CreateWorkspaceRequest struct {
	Name string `json:"name" validate:"required"`
}
