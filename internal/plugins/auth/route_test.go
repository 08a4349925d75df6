package auth

import "testing"

func TestRoutePath(t *testing.T) {
	tests := []struct {
		name  string
		route Route
		want  string
	}{
		{"selection", Route{Kind: RouteWorkspaceSelection}, "/workspaces"},
		{"home", WorkspaceHome("ws-1"), "/workspace/ws-1"},
		{"login", Route{Kind: RouteLogin}, "/login"},
		{"timeout", Route{Kind: RouteLogin, Timeout: true}, "/login?timeout=true"},
		{"signup", SignUpForInvite("abc", "Sato Family"), "/signup?inviteToken=abc&workspaceName=Sato+Family"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.route.Path(); got != tt.want {
				t.Errorf("Path() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouteForWorkspaces(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want Route
	}{
		{"none", nil, Route{Kind: RouteWorkspaceSelection}},
		{"one", []string{"ws-1"}, WorkspaceHome("ws-1")},
		{"two", []string{"ws-1", "ws-2"}, Route{Kind: RouteWorkspaceSelection}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := routeForWorkspaces(tt.ids); got != tt.want {
				t.Errorf("routeForWorkspaces(%v) = %+v, want %+v", tt.ids, got, tt.want)
			}
		})
	}
}
