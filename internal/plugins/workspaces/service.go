package workspaces

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/form"
	"github.com/keyxmakerx/juken/internal/sanitize"
)

// WorkspaceService handles business logic for workspaces and membership.
type WorkspaceService interface {
	Create(ctx context.Context, ownerID, name string) (*Workspace, error)
	GetByID(ctx context.Context, id string) (*Workspace, error)
	ListForUser(ctx context.Context, userID string) ([]Workspace, error)

	// WorkspaceIDsForUser returns the distinct IDs ListForUser would.
	WorkspaceIDsForUser(ctx context.Context, userID string) ([]string, error)

	// Membership
	RoleOf(ctx context.Context, workspaceID, userID string) (Role, error)
	IsMember(ctx context.Context, workspaceID, userID string) (bool, error)
	AddMember(ctx context.Context, workspaceID, userID string, role Role) error
	ListMembers(ctx context.Context, workspaceID string) ([]Member, error)
}

// workspaceService implements WorkspaceService.
type workspaceService struct {
	repo WorkspaceRepository
	now  func() time.Time
}

// NewWorkspaceService creates a new workspace service.
func NewWorkspaceService(repo WorkspaceRepository) WorkspaceService {
	return &workspaceService{repo: repo, now: time.Now}
}

// Create validates the name, strips markup and stores the workspace with
// ownerID as its owner.
func (s *workspaceService) Create(ctx context.Context, ownerID, name string) (*Workspace, error) {
	if msg := form.WorkspaceName.Validate(name); msg != "" {
		return nil, apperror.NewFieldErrors(map[string]string{"name": msg})
	}
	clean := sanitize.Text(name)
	if clean == "" {
		return nil, apperror.NewFieldErrors(map[string]string{"name": "Workspace name is required"})
	}

	ws := &Workspace{
		ID:        uuid.NewString(),
		Name:      clean,
		OwnerID:   ownerID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, ws); err != nil {
		return nil, apperror.NewInternal(err)
	}

	slog.Info("workspace created",
		slog.String("workspace_id", ws.ID),
		slog.String("owner_id", ownerID),
	)
	return ws, nil
}

// GetByID retrieves a workspace. Returns NotFound when it does not exist.
func (s *workspaceService) GetByID(ctx context.Context, id string) (*Workspace, error) {
	ws, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, apperror.NewInternal(err)
	}
	return ws, nil
}

// ListForUser returns owned and joined workspaces, deduplicated by ID and
// ordered by creation time.
func (s *workspaceService) ListForUser(ctx context.Context, userID string) ([]Workspace, error) {
	list, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return dedupeWorkspaces(list), nil
}

// dedupeWorkspaces keeps the first occurrence of each ID and sorts the
// result by CreatedAt, then ID for equal timestamps.
func dedupeWorkspaces(list []Workspace) []Workspace {
	seen := make(map[string]bool, len(list))
	out := make([]Workspace, 0, len(list))
	for _, ws := range list {
		if seen[ws.ID] {
			continue
		}
		seen[ws.ID] = true
		out = append(out, ws)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// WorkspaceIDsForUser lists the IDs of ListForUser.
func (s *workspaceService) WorkspaceIDsForUser(ctx context.Context, userID string) ([]string, error) {
	list, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(list))
	for i, ws := range list {
		ids[i] = ws.ID
	}
	return ids, nil
}

// RoleOf returns the user's role in the workspace. NotFound passes through.
func (s *workspaceService) RoleOf(ctx context.Context, workspaceID, userID string) (Role, error) {
	role, err := s.repo.FindRole(ctx, workspaceID, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return RoleNone, err
		}
		return RoleNone, apperror.NewInternal(err)
	}
	return role, nil
}

// IsMember reports whether the user owns or belongs to the workspace.
func (s *workspaceService) IsMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	role, err := s.RoleOf(ctx, workspaceID, userID)
	if err != nil {
		return false, err
	}
	return role >= RoleMember, nil
}

// AddMember records userID as a member. A duplicate returns Conflict.
func (s *workspaceService) AddMember(ctx context.Context, workspaceID, userID string, role Role) error {
	if role == RoleNone {
		role = RoleMember
	}
	err := s.repo.AddMember(ctx, &Member{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		JoinedAt:    s.now().UTC(),
	})
	if err != nil {
		if apperror.IsConflict(err) {
			return err
		}
		return apperror.NewInternal(err)
	}

	slog.Info("workspace member added",
		slog.String("workspace_id", workspaceID),
		slog.String("user_id", userID),
		slog.String("role", role.String()),
	)
	return nil
}

// ListMembers returns all members with usernames.
func (s *workspaceService) ListMembers(ctx context.Context, workspaceID string) ([]Member, error) {
	members, err := s.repo.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return members, nil
}
