package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// RequestPasswordReset issues a one-time passcode to the account's email.
//
// Unlike Login, this endpoint discloses whether the email is registered
// ([ErrAccountNotFound]): the reset flow only makes sense for registered
// addresses, and the product keeps the check client-visible. The throttle is
// checked before the account lookup but charged only after a passcode is
// actually issued, so probing unknown emails does not consume budget.
//
// The passcode record is committed before the mail is handed to the sender;
// a dispatch failure returns [ErrMailDispatchFailed] with the record intact,
// and retrying the send is the caller's decision.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() || e.otpStore == nil || e.otpLimiter == nil {
		return ErrEngineNotReady
	}
	if e.mailer == nil {
		return ErrEngineNotReady
	}

	if err := e.otpLimiter.Check(ctx, email); err != nil {
		var throttled *ThrottledError
		if errors.As(err, &throttled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrResetUnavailable, err)
	}

	if _, err := e.accounts.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	code, err := newOTP(e.config.OTP.Digits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	expiresAt := e.now().Add(e.config.OTP.TTL)
	if err := e.otpStore.Save(ctx, email, hashOTP(code), expiresAt, e.config.OTP.TTL); err != nil {
		return fmt.Errorf("%w: %v", ErrResetUnavailable, err)
	}

	if err := e.otpLimiter.Increment(ctx, email); err != nil {
		return fmt.Errorf("%w: %v", ErrResetUnavailable, err)
	}

	body := otpMessageBody(code, e.config.OTP.TTL)
	if e.config.Mail.Body != nil {
		body = e.config.Mail.Body(code, e.config.OTP.TTL)
	}
	if err := e.mailer.Send(ctx, email, e.config.Mail.Subject, body); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDispatchFailed, err)
	}

	return nil
}

// ConfirmPasswordReset verifies the submitted passcode and, on match,
// replaces the account's credential.
//
// The attempt cap is enforced first: the submission after the cap destroys
// the passcode record and returns [ErrOTPAttemptsExceeded], forcing a fresh
// request. A wrong, expired, or absent passcode returns an
// [*OTPAttemptsError] with the remaining budget. The hourly request window is
// untouched by any of this; it runs its own course.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, code, newSecret string) error {
	if !e.ready() || e.otpStore == nil {
		return ErrEngineNotReady
	}

	// Policy is checked before the passcode so a rejected replacement
	// password does not burn an attempt.
	if err := validatePasswordPolicy(newSecret); err != nil {
		return err
	}

	remaining, err := e.otpStore.Check(ctx, email, hashOTP(code), e.config.OTP.MaxAttempts, e.now())
	if err != nil {
		switch {
		case errors.Is(err, errOTPAttemptsExceeded):
			return ErrOTPAttemptsExceeded
		case errors.Is(err, errOTPMismatch):
			return &OTPAttemptsError{Remaining: remaining}
		default:
			return fmt.Errorf("%w: %v", ErrResetUnavailable, err)
		}
	}

	hash, err := e.hasher.Hash(ctx, newSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.accounts.UpdateCredentialHash(ctx, acct.ID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// The credential is already replaced; losing the cleanup only means the
	// record ages out on its own TTL instead of being deleted now.
	if err := e.otpStore.Clear(ctx, email); err != nil {
		log.Printf("authcore: otp cleanup after reset failed: %v", err)
	}

	return nil
}
