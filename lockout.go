package authcore

import (
	"context"
	"fmt"
	"time"
)

// lockoutEngine drives the per-account failure counter state machine over the
// injected account store. An account is OPEN while its failure count is below
// the threshold and no lock expiry is in the future; it is LOCKED between the
// triggering failure and the lock expiry. A lock that has expired returns the
// account to OPEN implicitly; the stale counter is cleared on the next
// successful verification.
type lockoutEngine struct {
	store AccountStore
	cfg   LockoutConfig
	now   func() time.Time
}

func newLockoutEngine(store AccountStore, cfg LockoutConfig, now func() time.Time) *lockoutEngine {
	if now == nil {
		now = time.Now
	}
	return &lockoutEngine{store: store, cfg: cfg, now: now}
}

// locked reports whether acct is inside an active lock window.
func (l *lockoutEngine) locked(acct Account) bool {
	return acct.LockedUntil != nil && l.now().Before(*acct.LockedUntil)
}

// onFailure records one failed verification. The increment and the
// threshold/lock decision happen in a single conditional store update, so two
// concurrent failures can never both observe the pre-increment counter.
// It reports whether this failure triggered the lock.
func (l *lockoutEngine) onFailure(ctx context.Context, acct Account) (bool, error) {
	updated, err := l.store.RecordFailedLogin(ctx, acct.ID, l.cfg.Threshold, l.cfg.Duration)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return updated.LockedUntil != nil && l.now().Before(*updated.LockedUntil), nil
}

// onSuccess clears the failure counter and lock expiry after a successful
// verification and stamps the login time. A single store write covers both.
func (l *lockoutEngine) onSuccess(ctx context.Context, acct Account) error {
	if err := l.store.ResetLockout(ctx, acct.ID, l.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
