package invitations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/plugins/audit"
	"github.com/keyxmakerx/juken/internal/plugins/auth"
	"github.com/keyxmakerx/juken/internal/plugins/workspaces"
)

// tokenBytes is the number of random bytes in an invitation token (64 hex chars).
const tokenBytes = 32

// Defaults for CreateOptions.
const (
	DefaultTTL     = 24 * time.Hour
	DefaultMaxUses = 1
)

// Membership is the slice of the workspace service redemption needs.
// Satisfied by workspaces.WorkspaceService.
type Membership interface {
	IsMember(ctx context.Context, workspaceID, userID string) (bool, error)
	AddMember(ctx context.Context, workspaceID, userID string, role workspaces.Role) error
}

// InvitationService handles creation and redemption of invitations. It
// also resumes parked invitations at sign-in, as an auth.InviteRedeemer.
type InvitationService interface {
	Create(ctx context.Context, workspaceID, createdBy string, opts CreateOptions) (*Token, error)
	URL(token string) string

	// Validate runs the read-only checks: not found, expired, exhausted.
	Validate(ctx context.Context, token string) (*Token, error)

	// ValidateAndRedeem validates token and, for a signed-in user, joins
	// the workspace. A nil user parks the token under clientKey.
	ValidateAndRedeem(ctx context.Context, token string, user *auth.User, clientKey string) (*Outcome, error)

	// PendingFor returns the invitation parked for clientKey, or nil.
	PendingFor(ctx context.Context, clientKey string) (*Pending, error)

	auth.InviteRedeemer
}

// ServiceConfig holds invitation settings.
type ServiceConfig struct {
	// BaseURL is the web app origin used to build invitation links.
	BaseURL string
	TTL     time.Duration
	MaxUses int

	// Activity receives invitation.created and member.joined entries.
	// Nil disables recording.
	Activity audit.Recorder
}

// invitationService implements InvitationService.
type invitationService struct {
	repo    InvitationRepository
	members Membership
	pending *PendingStore
	cfg     ServiceConfig
	now     func() time.Time
}

// NewInvitationService creates a new invitation service.
func NewInvitationService(repo InvitationRepository, members Membership, pending *PendingStore, cfg ServiceConfig) InvitationService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxUses < 1 {
		cfg.MaxUses = DefaultMaxUses
	}
	return &invitationService{repo: repo, members: members, pending: pending, cfg: cfg, now: time.Now}
}

// --- Creation ---

// Create issues a new token for workspaceID. Only an owner or member of
// the workspace may invite.
func (s *invitationService) Create(ctx context.Context, workspaceID, createdBy string, opts CreateOptions) (*Token, error) {
	ok, err := s.members.IsMember(ctx, workspaceID, createdBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NewForbidden("you are not a member of this workspace")
	}

	if opts.TTL <= 0 {
		opts.TTL = s.cfg.TTL
	}
	if opts.MaxUses < 1 {
		opts.MaxUses = s.cfg.MaxUses
	}

	value, err := generateToken()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generating invitation token: %w", err))
	}

	now := s.now().UTC()
	t := &Token{
		Token:       value,
		WorkspaceID: workspaceID,
		CreatedBy:   createdBy,
		ExpiresAt:   now.Add(opts.TTL),
		MaxUses:     opts.MaxUses,
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, apperror.NewInternal(err)
	}

	slog.Info("invitation created",
		slog.String("workspace_id", workspaceID),
		slog.String("created_by", createdBy),
		slog.Int("max_uses", t.MaxUses),
		slog.Time("expires_at", t.ExpiresAt),
	)
	s.record(ctx, workspaceID, createdBy, audit.ActionInvitationCreated, map[string]any{
		"maxUses":   t.MaxUses,
		"expiresAt": t.ExpiresAt,
	})
	return t, nil
}

// URL returns the web app link for token.
func (s *invitationService) URL(token string) string {
	return s.cfg.BaseURL + "/invite/" + token
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// --- Redemption ---

// Validate looks the token up and checks it in order: existence, expiry,
// then remaining uses. Expiry wins over the use count.
func (s *invitationService) Validate(ctx context.Context, token string) (*Token, error) {
	if token == "" {
		return nil, apperror.NewKind(apperror.KindInviteNotFound, nil)
	}

	t, err := s.repo.FindByToken(ctx, token)
	if apperror.IsNotFound(err) {
		return nil, apperror.NewKind(apperror.KindInviteNotFound, err)
	}
	if err != nil {
		return nil, processingFailed(err)
	}

	if s.now().After(t.ExpiresAt) {
		return nil, apperror.NewKind(apperror.KindInviteExpired, nil)
	}
	if t.CurrentUses >= t.MaxUses {
		return nil, apperror.NewKind(apperror.KindInviteExhausted, nil)
	}
	return t, nil
}

// ValidateAndRedeem runs the whole redemption. Failures carry an
// invitation Kind; anything unexpected is KindInviteProcessingFailed.
func (s *invitationService) ValidateAndRedeem(ctx context.Context, token string, user *auth.User, clientKey string) (*Outcome, error) {
	t, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return s.park(ctx, t, clientKey)
	}

	member, err := s.members.IsMember(ctx, t.WorkspaceID, user.ID)
	if err != nil {
		return nil, processingFailed(err)
	}
	if member {
		return joinedOutcome(StatusAlreadyMember, t), nil
	}

	if err := s.members.AddMember(ctx, t.WorkspaceID, user.ID, workspaces.RoleMember); err != nil {
		if !apperror.IsConflict(err) {
			return nil, processingFailed(err)
		}
		// Another request added the user first.
		if member, checkErr := s.members.IsMember(ctx, t.WorkspaceID, user.ID); checkErr == nil && member {
			return joinedOutcome(StatusAlreadyMember, t), nil
		}
		return nil, processingFailed(err)
	}

	// The user is in. A failed claim is logged, never surfaced: a retry by
	// the same user ends at the membership check above.
	claimed, err := s.repo.ClaimUse(ctx, t.Token, user.ID, s.now().UTC())
	switch {
	case err != nil:
		slog.Warn("invitation use not recorded",
			slog.String("workspace_id", t.WorkspaceID),
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	case !claimed:
		slog.Warn("invitation use not recorded, no uses left",
			slog.String("workspace_id", t.WorkspaceID),
			slog.String("user_id", user.ID),
		)
	}

	slog.Info("joined workspace via invitation",
		slog.String("workspace_id", t.WorkspaceID),
		slog.String("user_id", user.ID),
	)
	s.record(ctx, t.WorkspaceID, user.ID, audit.ActionMemberJoined, map[string]any{"invitedBy": t.CreatedBy})
	return joinedOutcome(StatusJoined, t), nil
}

// park stores the token for an anonymous client and sends it to sign-up.
func (s *invitationService) park(ctx context.Context, t *Token, clientKey string) (*Outcome, error) {
	if clientKey == "" {
		return nil, processingFailed(fmt.Errorf("no client key to park invitation under"))
	}
	if err := s.pending.Put(ctx, clientKey, Pending{Token: t.Token, WorkspaceName: t.WorkspaceName}); err != nil {
		return nil, processingFailed(err)
	}
	return &Outcome{
		Status:        StatusPendingSignup,
		WorkspaceID:   t.WorkspaceID,
		WorkspaceName: t.WorkspaceName,
		Route:         auth.SignUpForInvite(t.Token, t.WorkspaceName).Path(),
	}, nil
}

// PendingFor reads the parked invitation without consuming it.
func (s *invitationService) PendingFor(ctx context.Context, clientKey string) (*Pending, error) {
	if clientKey == "" {
		return nil, nil
	}
	p, err := s.pending.Peek(ctx, clientKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return p, nil
}

func (s *invitationService) record(ctx context.Context, workspaceID, userID, action string, details map[string]any) {
	if s.cfg.Activity != nil {
		s.cfg.Activity.Record(ctx, workspaceID, userID, action, details)
	}
}

func joinedOutcome(status Status, t *Token) *Outcome {
	return &Outcome{
		Status:        status,
		WorkspaceID:   t.WorkspaceID,
		WorkspaceName: t.WorkspaceName,
		Route:         auth.WorkspaceHome(t.WorkspaceID).Path(),
	}
}

func processingFailed(err error) *apperror.AppError {
	slog.Error("invitation processing failed", slog.Any("error", err))
	return apperror.NewKind(apperror.KindInviteProcessingFailed, err)
}

// --- auth.InviteRedeemer ---

// RedeemPending redeems the invitation parked for clientKey. The entry is
// consumed whether or not redemption succeeds.
func (s *invitationService) RedeemPending(ctx context.Context, clientKey string, user *auth.User) (auth.Route, bool, error) {
	p, err := s.pending.Take(ctx, clientKey)
	if err != nil {
		return auth.Route{}, false, err
	}
	if p == nil {
		return auth.Route{}, false, nil
	}

	out, err := s.ValidateAndRedeem(ctx, p.Token, user, clientKey)
	if err != nil {
		return auth.Route{}, false, err
	}
	return auth.WorkspaceHome(out.WorkspaceID), true, nil
}

// DiscardPending drops the parked invitation for clientKey.
func (s *invitationService) DiscardPending(ctx context.Context, clientKey string) error {
	return s.pending.Delete(ctx, clientKey)
}
