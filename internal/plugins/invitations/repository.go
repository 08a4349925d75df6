package invitations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyxmakerx/juken/internal/apperror"
)

// InvitationRepository defines the data access contract for invitation tokens.
type InvitationRepository interface {
	Create(ctx context.Context, t *Token) error

	// FindByToken returns the token with its workspace name, or NotFound.
	FindByToken(ctx context.Context, token string) (*Token, error)

	// ClaimUse increments current_uses and stamps used_by/used_at in one
	// statement, only while uses remain. Reports whether a use was claimed.
	ClaimUse(ctx context.Context, token, userID string, at time.Time) (bool, error)
}

// invitationRepository implements InvitationRepository with MariaDB queries.
type invitationRepository struct {
	db *sql.DB
}

// NewInvitationRepository creates a new repository backed by the given DB pool.
func NewInvitationRepository(db *sql.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

// Create inserts a token row with zero uses.
func (r *invitationRepository) Create(ctx context.Context, t *Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitation_tokens (token, workspace_id, created_by, expires_at, max_uses, current_uses, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		t.Token, t.WorkspaceID, t.CreatedBy, t.ExpiresAt, t.MaxUses, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting invitation token: %w", err)
	}
	return nil
}

// FindByToken joins the workspace so the name can be shown before sign-up.
func (r *invitationRepository) FindByToken(ctx context.Context, token string) (*Token, error) {
	query := `SELECT t.token, t.workspace_id, w.name, t.created_by, t.expires_at,
	                 t.max_uses, t.current_uses, t.used_by, t.used_at, t.created_at
	          FROM invitation_tokens t
	          INNER JOIN workspaces w ON w.id = t.workspace_id
	          WHERE t.token = ?`

	t := &Token{}
	var usedBy sql.NullString
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&t.Token, &t.WorkspaceID, &t.WorkspaceName, &t.CreatedBy, &t.ExpiresAt,
		&t.MaxUses, &t.CurrentUses, &usedBy, &usedAt, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("invitation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying invitation token: %w", err)
	}
	if usedBy.Valid {
		t.UsedBy = &usedBy.String
	}
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	return t, nil
}

// ClaimUse is a conditional UPDATE, so two concurrent redemptions of a
// single-use token cannot both count.
func (r *invitationRepository) ClaimUse(ctx context.Context, token, userID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitation_tokens
		 SET current_uses = current_uses + 1, used_by = ?, used_at = ?
		 WHERE token = ? AND current_uses < max_uses`,
		userID, at, token,
	)
	if err != nil {
		return false, fmt.Errorf("claiming invitation use: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming invitation use: %w", err)
	}
	return n == 1, nil
}
