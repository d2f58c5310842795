package session

import (
	"context"
	"log"
	"time"
)

// Purger deletes expired rows. Both store kinds of expiring record are
// covered.
type Purger interface {
	PurgeSessionsBefore(ctx context.Context, before time.Time) (int, error)
	PurgeVerificationCodesBefore(ctx context.Context, before time.Time) (int, error)
}

// ReapOnce deletes sessions and verification codes that expired before now.
func ReapOnce(ctx context.Context, p Purger, now time.Time) (sessions, codes int, err error) {
	ctxPurge, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sessions, err = p.PurgeSessionsBefore(ctxPurge, now)
	if err != nil {
		return 0, 0, err
	}
	codes, err = p.PurgeVerificationCodesBefore(ctxPurge, now)
	if err != nil {
		return sessions, 0, err
	}
	return sessions, codes, nil
}

// RunReaper calls ReapOnce immediately and then every interval until ctx
// is done. Validation never relies on it.
func RunReaper(ctx context.Context, p Purger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	runOnce := func() {
		now := time.Now().UTC()
		s, c, err := ReapOnce(ctx, p, now)
		if err != nil {
			log.Printf("[reaper] purge failed: %v", err)
			return
		}
		if s > 0 || c > 0 {
			log.Printf("[reaper] purged %d sessions and %d codes (< %s)", s, c, now.Format(time.RFC3339))
		}
	}

	runOnce()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runOnce()
		}
	}
}
