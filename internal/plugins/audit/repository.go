package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// AuditRepository defines the data access contract for the activity log.
type AuditRepository interface {
	Log(ctx context.Context, entry *Entry) error

	// ListByWorkspace returns entries newest first plus the total count.
	ListByWorkspace(ctx context.Context, workspaceID string, limit, offset int) ([]Entry, int, error)
}

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log inserts entry. Nil details are stored as NULL.
func (r *auditRepository) Log(ctx context.Context, entry *Entry) error {
	var details []byte
	if entry.Details != nil {
		var err error
		if details, err = json.Marshal(entry.Details); err != nil {
			return fmt.Errorf("marshaling activity details: %w", err)
		}
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO workspace_activity (workspace_id, user_id, action, details, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.WorkspaceID, entry.UserID, entry.Action, details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting activity entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting activity entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByWorkspace joins the actor's username for display. Entries whose
// user was deleted keep an empty username.
func (r *auditRepository) ListByWorkspace(ctx context.Context, workspaceID string, limit, offset int) ([]Entry, int, error) {
	// Count first so the handler can render page numbers.
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workspace_activity WHERE workspace_id = ?`, workspaceID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting activity entries: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.workspace_id, a.user_id, a.action, a.details, a.created_at,
		        COALESCE(u.username, '')
		 FROM workspace_activity a
		 LEFT JOIN users u ON u.id = a.user_id
		 WHERE a.workspace_id = ?
		 ORDER BY a.created_at DESC, a.id DESC
		 LIMIT ? OFFSET ?`,
		workspaceID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing activity entries: %w", err)
	}
	defer rows.Close()

	// Empty slice, not nil, so the JSON feed is [] rather than null.
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.UserID, &e.Action, &details, &e.CreatedAt, &e.Username); err != nil {
			return nil, 0, fmt.Errorf("scanning activity entry: %w", err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				// Keep the feed readable even if one row is malformed.
				e.Details = map[string]any{"_parse_error": "invalid JSON"}
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating activity rows: %w", err)
	}
	return entries, total, nil
}
