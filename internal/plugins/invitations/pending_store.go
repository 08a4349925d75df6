package invitations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingKeyPrefix namespaces parked invitations by client key.
const pendingKeyPrefix = "pending_invite:"

// PendingStore parks an invitation for a client until it authenticates.
// Entries expire after ttl; a client holds at most one.
type PendingStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPendingStore creates a store whose entries live for ttl.
func NewPendingStore(rdb *redis.Client, ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PendingStore{rdb: rdb, ttl: ttl}
}

// Put parks p for clientKey, replacing any earlier entry.
func (s *PendingStore) Put(ctx context.Context, clientKey string, p Pending) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling pending invitation: %w", err)
	}
	if err := s.rdb.Set(ctx, pendingKeyPrefix+clientKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing pending invitation: %w", err)
	}
	return nil
}

// Peek returns the parked invitation without removing it, or nil.
func (s *PendingStore) Peek(ctx context.Context, clientKey string) (*Pending, error) {
	data, err := s.rdb.Get(ctx, pendingKeyPrefix+clientKey).Bytes()
	return decodePending(data, err)
}

// Take returns and removes the parked invitation, or nil.
func (s *PendingStore) Take(ctx context.Context, clientKey string) (*Pending, error) {
	data, err := s.rdb.GetDel(ctx, pendingKeyPrefix+clientKey).Bytes()
	return decodePending(data, err)
}

// Delete drops the parked invitation if there is one.
func (s *PendingStore) Delete(ctx context.Context, clientKey string) error {
	if err := s.rdb.Del(ctx, pendingKeyPrefix+clientKey).Err(); err != nil {
		return fmt.Errorf("deleting pending invitation: %w", err)
	}
	return nil
}

func decodePending(data []byte, err error) (*Pending, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading pending invitation: %w", err)
	}
	var p Pending
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling pending invitation: %w", err)
	}
	return &p, nil
}
