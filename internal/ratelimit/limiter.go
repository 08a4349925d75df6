// Package ratelimit throttles repeated attempts per identifier (normalized
// email for sign-in, client IP for the HTTP middleware). State is in memory
// and lost on restart.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Default policy. Tests and callers rely on these exact values.
const (
	DefaultMaxAttempts     = 5
	DefaultWindow          = 15 * time.Minute
	DefaultBlockDuration   = 30 * time.Minute
	DefaultCleanupInterval = time.Hour
)

// Result is the outcome of one Check.
type Result struct {
	Allowed           bool
	RemainingAttempts int

	// BlockedUntil is set when Allowed is false.
	BlockedUntil time.Time
}

// RetryAfter returns the whole minutes until the block lifts, rounded up.
// Zero when the result is not blocked.
func (r Result) RetryAfter(now time.Time) int {
	if r.BlockedUntil.IsZero() || !now.Before(r.BlockedUntil) {
		return 0
	}
	return int(math.Ceil(r.BlockedUntil.Sub(now).Minutes()))
}

type entry struct {
	attempts         int
	firstAttemptTime time.Time
	blockedUntil     time.Time
}

// Limiter counts attempts per identifier inside a rolling window.
type Limiter struct {
	maxAttempts   int
	window        time.Duration
	blockDuration time.Duration
	now           func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithMaxAttempts sets how many attempts are allowed per window.
func WithMaxAttempts(n int) Option {
	return func(l *Limiter) { l.maxAttempts = n }
}

// WithWindow sets the rolling window.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

// WithBlockDuration sets how long an identifier stays blocked.
func WithBlockDuration(d time.Duration) Option {
	return func(l *Limiter) { l.blockDuration = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter with the default policy unless overridden.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		maxAttempts:   DefaultMaxAttempts,
		window:        DefaultWindow,
		blockDuration: DefaultBlockDuration,
		now:           time.Now,
		entries:       make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records an attempt for identifier and reports whether it may
// proceed.
func (l *Limiter) Check(identifier string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if !ok {
		return l.fresh(identifier, now)
	}

	if !e.blockedUntil.IsZero() && now.Before(e.blockedUntil) {
		return Result{Allowed: false, BlockedUntil: e.blockedUntil}
	}

	if now.Sub(e.firstAttemptTime) > l.window {
		return l.fresh(identifier, now)
	}

	e.attempts++
	if e.attempts > l.maxAttempts {
		e.blockedUntil = now.Add(l.blockDuration)
		return Result{Allowed: false, BlockedUntil: e.blockedUntil}
	}
	return Result{Allowed: true, RemainingAttempts: l.maxAttempts - e.attempts}
}

// fresh replaces the entry with a first attempt. Caller holds mu.
func (l *Limiter) fresh(identifier string, now time.Time) Result {
	l.entries[identifier] = &entry{attempts: 1, firstAttemptTime: now}
	return Result{Allowed: true, RemainingAttempts: l.maxAttempts - 1}
}

// Reset forgets identifier. Called after a successful authentication.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	delete(l.entries, identifier)
	l.mu.Unlock()
}

// Cleanup drops entries whose block has lifted and whose window has passed.
// Entries still inside either period are kept. Returns the number removed.
func (l *Limiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, e := range l.entries {
		blockOver := e.blockedUntil.IsZero() || !now.Before(e.blockedUntil)
		windowOver := now.Sub(e.firstAttemptTime) > l.window
		if blockOver && windowOver {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run calls Cleanup every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				slog.Debug("rate limiter cleanup", slog.Int("removed", n))
			}
		}
	}
}
