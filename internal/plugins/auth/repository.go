package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/database"
)

// UserRepository defines the data access contract for user operations.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	ConfirmEmail(ctx context.Context, userID string, at time.Time) error

	// One-time tokens (recovery and sign-up confirmation).
	CreateOneTimeToken(ctx context.Context, userID string, purpose OTPType, tokenHash string, expiresAt time.Time) error
	ConsumeOneTimeToken(ctx context.Context, tokenHash string, purpose OTPType, now time.Time) (userID string, err error)
}

// userRepository implements UserRepository with hand-written MariaDB queries.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository backed by the given DB pool.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user row. A taken e-mail returns a Conflict.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (id, email, username, password_hash, confirmed_at, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.ConfirmedAt,
		user.CreatedAt,
	)
	if database.IsDuplicateKey(err) {
		return apperror.NewConflict("email already registered")
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

const userColumns = `id, email, username, password_hash, confirmed_at, created_at, last_login_at`

// FindByID retrieves a user by UUID. Returns NotFound if no row matches.
func (r *userRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindByEmail retrieves a user by normalized e-mail. Returns NotFound if no
// row matches.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *userRepository) findOne(ctx context.Context, query string, arg any) (*User, error) {
	user := &User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.ConfirmedAt,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	// Local accounts have exactly one e-mail identity.
	user.Identities = []Identity{{Provider: "email", CreatedAt: user.CreatedAt}}
	return user, nil
}

// UpdateLastLogin stamps last_login_at.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// UpdatePassword sets a new password hash for a user.
func (r *userRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NewNotFound("user not found")
	}
	return nil
}

// ConfirmEmail sets confirmed_at unless it is already set.
func (r *userRepository) ConfirmEmail(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET confirmed_at = ? WHERE id = ? AND confirmed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, at, userID); err != nil {
		return fmt.Errorf("confirming email: %w", err)
	}
	return nil
}

// CreateOneTimeToken stores SHA-256(token); the plaintext is never stored.
func (r *userRepository) CreateOneTimeToken(ctx context.Context, userID string, purpose OTPType, tokenHash string, expiresAt time.Time) error {
	query := `INSERT INTO one_time_tokens (token_hash, user_id, purpose, expires_at)
	          VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, tokenHash, userID, string(purpose), expiresAt); err != nil {
		return fmt.Errorf("creating one-time token: %w", err)
	}
	return nil
}

// ConsumeOneTimeToken marks an unused, unexpired token as used and returns
// its user. The conditional UPDATE makes the token single-use even under
// concurrent redemption. Returns NotFound when no token qualifies.
func (r *userRepository) ConsumeOneTimeToken(ctx context.Context, tokenHash string, purpose OTPType, now time.Time) (string, error) {
	query := `UPDATE one_time_tokens SET used_at = ?
	          WHERE token_hash = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?`
	result, err := r.db.ExecContext(ctx, query, now, tokenHash, string(purpose), now)
	if err != nil {
		return "", fmt.Errorf("consuming one-time token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return "", apperror.NewNotFound("invalid or expired token")
	}

	var userID string
	err = r.db.QueryRowContext(ctx, `SELECT user_id FROM one_time_tokens WHERE token_hash = ?`, tokenHash).Scan(&userID)
	if err != nil {
		return "", fmt.Errorf("reading one-time token owner: %w", err)
	}
	return userID, nil
}
