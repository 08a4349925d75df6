package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyxmakerx/juken/internal/apperror"
)

// perPage is the number of entries per activity page.
const perPage = 50

// Recorder is the write side of the log that other plugins depend on.
type Recorder interface {
	// Record stores an entry. Failures are logged and swallowed.
	Record(ctx context.Context, workspaceID, userID, action string, details map[string]any)
}

// AuditService handles business logic for the activity log.
type AuditService interface {
	Recorder

	// Log validates and persists entry, returning any failure.
	Log(ctx context.Context, entry *Entry) error

	// WorkspaceActivity returns a 1-indexed page of the feed. Invalid page
	// numbers are clamped to 1.
	WorkspaceActivity(ctx context.Context, workspaceID string, page int) (*Page, error)
}

type auditService struct {
	repo AuditRepository
	now  func() time.Time
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo, now: time.Now}
}

func (s *auditService) Log(ctx context.Context, entry *Entry) error {
	if entry.WorkspaceID == "" {
		return apperror.NewBadRequest("workspace ID is required for activity entry")
	}
	if entry.UserID == "" {
		return apperror.NewBadRequest("user ID is required for activity entry")
	}
	if entry.Action == "" {
		return apperror.NewBadRequest("action is required for activity entry")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	if err := s.repo.Log(ctx, entry); err != nil {
		return apperror.NewInternal(fmt.Errorf("writing activity entry: %w", err))
	}
	return nil
}

func (s *auditService) Record(ctx context.Context, workspaceID, userID, action string, details map[string]any) {
	entry := &Entry{WorkspaceID: workspaceID, UserID: userID, Action: action, Details: details}
	if err := s.Log(ctx, entry); err != nil {
		slog.Warn("activity not recorded",
			slog.String("workspace_id", workspaceID),
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

func (s *auditService) WorkspaceActivity(ctx context.Context, workspaceID string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	entries, total, err := s.repo.ListByWorkspace(ctx, workspaceID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing workspace activity: %w", err))
	}
	return &Page{Entries: entries, Total: total, Page: page, PerPage: perPage}, nil
}
