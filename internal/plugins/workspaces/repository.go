package workspaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/database"
)

// WorkspaceRepository defines the data access contract for workspaces.
// Every read that lists workspaces is scoped by the caller's user ID.
type WorkspaceRepository interface {
	// Create inserts the workspace and its owner's member row atomically.
	Create(ctx context.Context, ws *Workspace) error
	FindByID(ctx context.Context, id string) (*Workspace, error)

	// ListForUser returns the workspaces userID owns or is a member of,
	// oldest first.
	ListForUser(ctx context.Context, userID string) ([]Workspace, error)

	// FindRole returns the user's role, counting workspaces.owner_id as
	// owner even without a member row. RoleNone when unrelated.
	FindRole(ctx context.Context, workspaceID, userID string) (Role, error)

	// AddMember inserts a member row. A second row for the same user
	// returns a Conflict.
	AddMember(ctx context.Context, m *Member) error
	ListMembers(ctx context.Context, workspaceID string) ([]Member, error)
}

// workspaceRepository implements WorkspaceRepository with MariaDB queries.
type workspaceRepository struct {
	db *sql.DB
}

// NewWorkspaceRepository creates a new repository backed by the given DB pool.
func NewWorkspaceRepository(db *sql.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

// Create inserts the workspace and the owner's member row in one transaction.
func (r *workspaceRepository) Create(ctx context.Context, ws *Workspace) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.OwnerID, ws.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting workspace: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		ws.ID, ws.OwnerID, RoleOwner.String(), ws.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting owner member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing workspace: %w", err)
	}
	return nil
}

// FindByID retrieves a workspace by its UUID.
func (r *workspaceRepository) FindByID(ctx context.Context, id string) (*Workspace, error) {
	ws := &Workspace{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM workspaces WHERE id = ?`, id,
	).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("workspace not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying workspace by id: %w", err)
	}
	return ws, nil
}

// ListForUser unions owned workspaces with member rows. DISTINCT collapses
// the owner's own member row.
func (r *workspaceRepository) ListForUser(ctx context.Context, userID string) ([]Workspace, error) {
	query := `SELECT DISTINCT w.id, w.name, w.owner_id, w.created_at
	          FROM workspaces w
	          LEFT JOIN workspace_members m ON m.workspace_id = w.id AND m.user_id = ?
	          WHERE w.owner_id = ? OR m.user_id IS NOT NULL
	          ORDER BY w.created_at, w.id`

	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing workspaces for user: %w", err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var ws Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning workspace: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// FindRole resolves the role from the owner column first, then the member row.
func (r *workspaceRepository) FindRole(ctx context.Context, workspaceID, userID string) (Role, error) {
	var ownerID string
	var memberRole sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT w.owner_id, m.role
		 FROM workspaces w
		 LEFT JOIN workspace_members m ON m.workspace_id = w.id AND m.user_id = ?
		 WHERE w.id = ?`,
		userID, workspaceID,
	).Scan(&ownerID, &memberRole)
	if errors.Is(err, sql.ErrNoRows) {
		return RoleNone, apperror.NewNotFound("workspace not found")
	}
	if err != nil {
		return RoleNone, fmt.Errorf("querying workspace role: %w", err)
	}

	if ownerID == userID {
		return RoleOwner, nil
	}
	if memberRole.Valid {
		return RoleFromString(memberRole.String), nil
	}
	return RoleNone, nil
}

// AddMember inserts a membership row.
func (r *workspaceRepository) AddMember(ctx context.Context, m *Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		m.WorkspaceID, m.UserID, m.Role.String(), m.JoinedAt,
	)
	if database.IsDuplicateKey(err) {
		return apperror.NewConflict("user is already a member of this workspace")
	}
	if err != nil {
		return fmt.Errorf("inserting workspace member: %w", err)
	}
	return nil
}

// ListMembers returns the members with their usernames, owner first.
func (r *workspaceRepository) ListMembers(ctx context.Context, workspaceID string) ([]Member, error) {
	query := `SELECT m.workspace_id, m.user_id, m.role, m.joined_at, u.username
	          FROM workspace_members m
	          INNER JOIN users u ON u.id = m.user_id
	          WHERE m.workspace_id = ?
	          ORDER BY m.role = 'owner' DESC, m.joined_at, u.username`

	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing workspace members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var role string
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &role, &m.JoinedAt, &m.Username); err != nil {
			return nil, fmt.Errorf("scanning workspace member: %w", err)
		}
		m.Role = RoleFromString(role)
		members = append(members, m)
	}
	return members, rows.Err()
}
