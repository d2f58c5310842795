// Package lockout tracks failed password attempts and the temporary lock
// they trigger.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamflix/authd/internal/store"
)

const (
	DefaultThreshold = 3
	DefaultDuration  = 15 * time.Minute
)

type Config struct {
	Threshold int
	Duration  time.Duration
}

// Guard reads and writes the failure counter and lock expiry on the
// account store. Callers check Check before verifying a password: a failure
// recorded while a lock is active still counts but does not extend the lock.
type Guard struct {
	users  store.Users
	config Config
	now    func() time.Time
}

func NewGuard(users store.Users, cfg Config) *Guard {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	return &Guard{users: users, config: cfg, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Check reports whether username is locked right now, with its failure
// count. Unknown usernames are reported as unlocked with zero failures.
func (g *Guard) Check(ctx context.Context, username string) (bool, int, error) {
	st, err := g.users.GetLockState(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("lock state: %w", err)
	}
	if !st.Locked(g.now()) {
		return false, st.FailedAttempts, nil
	}
	return true, st.FailedAttempts, nil
}

// RecordFailure increments the counter and locks the account once the
// threshold is reached. It returns the new count and whether the account
// is locked afterwards.
func (g *Guard) RecordFailure(ctx context.Context, username string) (int, bool, error) {
	now := g.now()
	st, err := g.users.RecordLoginFailure(ctx, username, store.FailurePolicy{
		Threshold: g.config.Threshold,
		Now:       now,
		LockUntil: now.Add(g.config.Duration),
	})
	if err != nil {
		return 0, false, fmt.Errorf("record failure: %w", err)
	}
	return st.FailedAttempts, st.Locked(now), nil
}

// RecordSuccess resets the counter and clears any lock.
func (g *Guard) RecordSuccess(ctx context.Context, username string) error {
	if err := g.users.ResetLoginFailures(ctx, username); err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}
