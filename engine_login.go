package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Login verifies the email/password pair and, on success, mints a session
// token for the account's identity.
//
// The caller-visible failure set is deliberately small: unknown accounts,
// wrong passwords, and deactivated accounts all return
// [ErrInvalidCredentials] so the endpoint cannot be used to enumerate
// registered emails. An active lockout returns [ErrAccountLocked] without the
// password ever being hashed. Every branch, backend failures included,
// appends exactly one audit entry.
//
// When a client IP rides on the context, the per-IP throttle runs before any
// account work: a throttled attempt returns [*LoginThrottledError] without
// touching the store and without an audit entry. The throttle fails open on
// a Redis outage; the per-account lockout does not depend on it.
func (e *Engine) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	if ip := clientIPFromContext(ctx); e.loginLimiter != nil && ip != "" {
		err := e.loginLimiter.Check(ctx, ip)
		var throttled *LoginThrottledError
		switch {
		case errors.As(err, &throttled):
			return nil, err
		case err != nil:
			log.Printf("authcore: login throttle check failed: %v", err)
		}
		if err := e.loginLimiter.Increment(ctx, ip); err != nil {
			log.Printf("authcore: login throttle increment failed: %v", err)
		}
	}

	if secret == "" {
		e.auditLogin(ctx, AuditFailed, "", email, "empty password")
		return nil, ErrInvalidCredentials
	}

	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.auditLogin(ctx, AuditFailed, "", email, "account not found")
			return nil, ErrInvalidCredentials
		}
		e.auditLogin(ctx, AuditError, "", email, "account lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if e.lockout.locked(acct) {
		e.auditLogin(ctx, AuditLocked, acct.ID, email, "account temporarily locked")
		return nil, ErrAccountLocked
	}

	ok, err := e.hasher.Verify(ctx, secret, acct.CredentialHash)
	if err != nil {
		e.auditLogin(ctx, AuditError, acct.ID, email, "credential verification failed")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if !ok {
		nowLocked, lockErr := e.lockout.onFailure(ctx, acct)
		if lockErr != nil {
			e.auditLogin(ctx, AuditError, acct.ID, email, "failure counter update failed")
			return nil, lockErr
		}
		if nowLocked {
			e.auditLogin(ctx, AuditLocked, acct.ID, email, "locked after repeated failures")
		} else {
			e.auditLogin(ctx, AuditFailed, acct.ID, email, "invalid password")
		}
		return nil, ErrInvalidCredentials
	}

	if !acct.Active {
		e.auditLogin(ctx, AuditFailed, acct.ID, email, "account deactivated")
		return nil, ErrInvalidCredentials
	}

	if err := e.lockout.onSuccess(ctx, acct); err != nil {
		e.auditLogin(ctx, AuditError, acct.ID, email, "lockout reset failed")
		return nil, err
	}

	tok, err := e.tokens.Issue(acct.ID, string(acct.Role))
	if err != nil {
		e.auditLogin(ctx, AuditError, acct.ID, email, "token issuance failed")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	e.auditLogin(ctx, AuditSuccess, acct.ID, email, "")
	return &LoginResult{
		Identity: Identity{
			AccountID: acct.ID,
			Username:  acct.Username,
			Role:      acct.Role,
		},
		Token: tok,
	}, nil
}
