package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefixes for session data.
const (
	sessionKeyPrefix     = "session:"
	refreshKeyPrefix     = "refresh:"
	userSessionKeyPrefix = "user_sessions:"
)

// errNoSession is returned by SessionStore when a token names nothing.
var errNoSession = errors.New("session not found")

// SessionStore keeps sessions in Redis. An access token expires after
// idleTTL without use; every Get slides the expiry. A refresh token mints
// a new session until refreshTTL passes. Each user's keys are tracked in a
// set so a global sign-out can remove them all.
type SessionStore struct {
	rdb        *redis.Client
	idleTTL    time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewSessionStore creates a store with the given lifetimes.
func NewSessionStore(rdb *redis.Client, idleTTL, refreshTTL time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, idleTTL: idleTTL, refreshTTL: refreshTTL, now: time.Now}
}

// refreshRecord is the value stored under a refresh key.
type refreshRecord struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// Create issues a new access/refresh token pair for user.
func (s *SessionStore) Create(ctx context.Context, user User) (*Session, error) {
	access, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}
	refresh, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	// Never cache the hash alongside the session.
	user.PasswordHash = ""
	session := &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.now().Add(s.idleTTL).UTC(),
		User:         user,
	}

	sessionData, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}
	refreshData, err := json.Marshal(refreshRecord{AccessToken: access, User: user})
	if err != nil {
		return nil, fmt.Errorf("marshaling refresh record: %w", err)
	}

	// Both tokens and the per-user index are written atomically. The index
	// lives as long as the longest token it names.
	userKey := userSessionKeyPrefix + user.ID
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKeyPrefix+access, sessionData, s.idleTTL)
		pipe.Set(ctx, refreshKeyPrefix+refresh, refreshData, s.refreshTTL)
		pipe.SAdd(ctx, userKey, sessionKeyPrefix+access, refreshKeyPrefix+refresh)
		pipe.Expire(ctx, userKey, s.refreshTTL)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storing session in Redis: %w", err)
	}
	return session, nil
}

// Get returns the live session for accessToken and slides its expiry.
// Returns errNoSession when the token is unknown or idled out.
func (s *SessionStore) Get(ctx context.Context, accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, errNoSession
	}
	key := sessionKeyPrefix + accessToken

	// Read and slide the idle expiry in one round trip.
	var get *redis.StringCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		pipe.Expire(ctx, key, s.idleTTL)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, errNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading session from Redis: %w", err)
	}

	data, err := get.Bytes()
	if err != nil {
		return nil, fmt.Errorf("reading session from Redis: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	session.ExpiresAt = s.now().Add(s.idleTTL).UTC()
	return &session, nil
}

// Refresh rotates a refresh token: the old pair is removed and a new
// session for the same user is created. It also returns the access token
// the rotation replaced. Returns errNoSession when the refresh token is
// unknown or expired.
func (s *SessionStore) Refresh(ctx context.Context, refreshToken string) (*Session, string, error) {
	if refreshToken == "" {
		return nil, "", errNoSession
	}
	key := refreshKeyPrefix + refreshToken

	// GETDEL makes the refresh token single-use even under concurrent calls.
	data, err := s.rdb.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, "", errNoSession
	}
	if err != nil {
		return nil, "", fmt.Errorf("reading refresh token from Redis: %w", err)
	}

	var rec refreshRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, "", fmt.Errorf("unmarshaling refresh record: %w", err)
	}

	userKey := userSessionKeyPrefix + rec.User.ID
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeyPrefix+rec.AccessToken)
		pipe.SRem(ctx, userKey, sessionKeyPrefix+rec.AccessToken, key)
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("removing rotated session: %w", err)
	}

	session, err := s.Create(ctx, rec.User)
	if err != nil {
		return nil, "", err
	}
	return session, rec.AccessToken, nil
}

// Replace stores an updated user in an existing session, keeping its TTL.
func (s *SessionStore) Replace(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := s.rdb.SetArgs(ctx, sessionKeyPrefix+session.AccessToken, data, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("updating session in Redis: %w", err)
	}
	return nil
}

// Delete removes one session and its refresh token.
func (s *SessionStore) Delete(ctx context.Context, session *Session) error {
	userKey := userSessionKeyPrefix + session.User.ID
	access := sessionKeyPrefix + session.AccessToken
	refresh := refreshKeyPrefix + session.RefreshToken

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, access, refresh)
		pipe.SRem(ctx, userKey, access, refresh)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting session from Redis: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session and refresh token of userID.
func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := userSessionKeyPrefix + userID

	keys, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("listing user sessions: %w", err)
	}

	keys = append(keys, userKey)
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}
