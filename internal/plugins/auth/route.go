package auth

import (
	"net/url"
)

// RouteKind names a destination in the web app.
type RouteKind int

const (
	// RouteWorkspaceSelection lists the user's workspaces (or offers to
	// create one).
	RouteWorkspaceSelection RouteKind = iota
	// RouteWorkspaceHome opens one workspace.
	RouteWorkspaceHome
	// RouteSignUp is the sign-up page pre-filled from an invitation.
	RouteSignUp
	// RouteLogin is the sign-in page.
	RouteLogin
)

// Route is where the web app should navigate next.
type Route struct {
	Kind        RouteKind
	WorkspaceID string

	// InviteToken and WorkspaceName are set for RouteSignUp.
	InviteToken   string
	WorkspaceName string

	// Timeout marks a RouteLogin caused by session inactivity.
	Timeout bool
}

// WorkspaceHome is a shorthand for the route into one workspace.
func WorkspaceHome(id string) Route {
	return Route{Kind: RouteWorkspaceHome, WorkspaceID: id}
}

// SignUpForInvite is the sign-up route carrying a pending invitation.
func SignUpForInvite(token, workspaceName string) Route {
	return Route{Kind: RouteSignUp, InviteToken: token, WorkspaceName: workspaceName}
}

// Path renders the route as a web app path.
func (r Route) Path() string {
	switch r.Kind {
	case RouteWorkspaceHome:
		return "/workspace/" + url.PathEscape(r.WorkspaceID)
	case RouteSignUp:
		q := url.Values{}
		q.Set("inviteToken", r.InviteToken)
		q.Set("workspaceName", r.WorkspaceName)
		return "/signup?" + q.Encode()
	case RouteLogin:
		if r.Timeout {
			return "/login?timeout=true"
		}
		return "/login"
	default:
		return "/workspaces"
	}
}

// routeForWorkspaces picks the landing route from the distinct workspaces
// a user can open. Exactly one opens it directly; none or several go to
// the selection screen.
func routeForWorkspaces(ids []string) Route {
	if len(ids) == 1 {
		return WorkspaceHome(ids[0])
	}
	return Route{Kind: RouteWorkspaceSelection}
}
