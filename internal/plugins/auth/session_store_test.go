package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func newTestSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewSessionStore(rdb, time.Hour, 720*time.Hour), mr
}

func testUser() User {
	return User{
		ID:           "user-1",
		Email:        "taro@example.com",
		Username:     "taro",
		PasswordHash: "$argon2id$secret",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store, mr := newTestSessionStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, testUser())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.User.PasswordHash != "" {
		t.Error("password hash must not be stored in the session")
	}
	if !mr.Exists(sessionKeyPrefix+created.AccessToken) || !mr.Exists(refreshKeyPrefix+created.RefreshToken) {
		t.Fatal("expected access and refresh keys in Redis")
	}

	got, err := store.Get(ctx, created.AccessToken)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(created.User, got.User); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}
	if got.RefreshToken != created.RefreshToken {
		t.Error("refresh token not round-tripped")
	}
}

func TestSessionStore_IdleTimeoutSlides(t *testing.T) {
	store, mr := newTestSessionStore(t)
	ctx := context.Background()

	s, _ := store.Create(ctx, testUser())

	mr.FastForward(50 * time.Minute)
	if _, err := store.Get(ctx, s.AccessToken); err != nil {
		t.Fatalf("session should still be live: %v", err)
	}

	// The Get above restarted the idle clock.
	mr.FastForward(50 * time.Minute)
	if _, err := store.Get(ctx, s.AccessToken); err != nil {
		t.Fatalf("session should have slid: %v", err)
	}

	mr.FastForward(61 * time.Minute)
	if _, err := store.Get(ctx, s.AccessToken); !errors.Is(err, errNoSession) {
		t.Fatalf("expected idle session to expire, got %v", err)
	}
}

func TestSessionStore_GetUnknown(t *testing.T) {
	store, _ := newTestSessionStore(t)
	for _, tok := range []string{"", "nope"} {
		if _, err := store.Get(context.Background(), tok); !errors.Is(err, errNoSession) {
			t.Errorf("Get(%q) error = %v, want errNoSession", tok, err)
		}
	}
}

func TestSessionStore_RefreshRotates(t *testing.T) {
	store, mr := newTestSessionStore(t)
	ctx := context.Background()

	old, _ := store.Create(ctx, testUser())

	fresh, previous, err := store.Refresh(ctx, old.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if previous != old.AccessToken {
		t.Errorf("previous = %q, want %q", previous, old.AccessToken)
	}
	if fresh.AccessToken == old.AccessToken || fresh.RefreshToken == old.RefreshToken {
		t.Error("expected new token pair")
	}
	if mr.Exists(sessionKeyPrefix+old.AccessToken) || mr.Exists(refreshKeyPrefix+old.RefreshToken) {
		t.Error("old pair should be removed")
	}
	if _, _, err := store.Refresh(ctx, old.RefreshToken); !errors.Is(err, errNoSession) {
		t.Errorf("reusing a rotated refresh token should fail, got %v", err)
	}
}

func TestSessionStore_DeleteOnlyOne(t *testing.T) {
	store, _ := newTestSessionStore(t)
	ctx := context.Background()

	a, _ := store.Create(ctx, testUser())
	b, _ := store.Create(ctx, testUser())

	if err := store.Delete(ctx, a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, a.AccessToken); !errors.Is(err, errNoSession) {
		t.Error("deleted session still live")
	}
	if _, err := store.Get(ctx, b.AccessToken); err != nil {
		t.Errorf("other session should survive: %v", err)
	}
}

func TestSessionStore_DeleteAllForUser(t *testing.T) {
	store, mr := newTestSessionStore(t)
	ctx := context.Background()

	a, _ := store.Create(ctx, testUser())
	b, _ := store.Create(ctx, testUser())
	other := testUser()
	other.ID = "user-2"
	c, _ := store.Create(ctx, other)

	if err := store.DeleteAllForUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteAllForUser: %v", err)
	}
	for _, s := range []*Session{a, b} {
		if _, err := store.Get(ctx, s.AccessToken); !errors.Is(err, errNoSession) {
			t.Error("session of signed-out user still live")
		}
		if mr.Exists(refreshKeyPrefix + s.RefreshToken) {
			t.Error("refresh token of signed-out user still present")
		}
	}
	if _, err := store.Get(ctx, c.AccessToken); err != nil {
		t.Errorf("other user's session should survive: %v", err)
	}
}

func TestSessionStore_ReplaceKeepsTTL(t *testing.T) {
	store, mr := newTestSessionStore(t)
	ctx := context.Background()

	s, _ := store.Create(ctx, testUser())
	mr.FastForward(30 * time.Minute)

	s.User.Username = "renamed"
	if err := store.Replace(ctx, s); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if ttl := mr.TTL(sessionKeyPrefix + s.AccessToken); ttl > 31*time.Minute {
		t.Errorf("TTL reset by Replace: %v", ttl)
	}
	got, _ := store.Get(ctx, s.AccessToken)
	if got.User.Username != "renamed" {
		t.Errorf("username = %q, want renamed", got.User.Username)
	}
}
