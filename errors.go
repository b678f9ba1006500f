package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngineNotReady is returned when Engine methods are called before the
	// engine has been constructed through [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrInvalidCredentials is the merged login failure for unknown accounts,
	// wrong passwords, and deactivated accounts. The audit log records which.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is returned while a temporary lockout is active.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrAccountNotFound is returned by account lookups, and by
	// RequestPasswordReset for unregistered emails.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailExists is returned by Register when the email is taken.
	ErrEmailExists = errors.New("email already registered")

	// ErrUsernameExists is returned by Register when the username is taken.
	ErrUsernameExists = errors.New("username already registered")

	// ErrUsernamePolicy is returned when a username fails registration policy.
	ErrUsernamePolicy = errors.New("username must be at least 3 characters of letters, digits, or underscore")

	// ErrEmailInvalid is returned when an email address is malformed.
	ErrEmailInvalid = errors.New("invalid email address")

	// ErrPasswordPolicy is returned when a password fails registration policy.
	ErrPasswordPolicy = errors.New("password must be at least 8 characters with upper, lower, and special characters")

	// ErrPhonePolicy is returned when a phone number is not 10 digits.
	ErrPhonePolicy = errors.New("phone number must be 10 digits")

	// ErrLoginRateLimited is returned when one client IP exceeds its login
	// attempt budget. Errors carrying a retry hint unwrap to this.
	ErrLoginRateLimited = errors.New("login rate limited")

	// ErrResetRateLimited is returned when the hourly OTP request budget for
	// an email is exhausted. Errors carrying a retry hint unwrap to this.
	ErrResetRateLimited = errors.New("password reset rate limited")

	// ErrOTPInvalid is returned when a submitted OTP is wrong, expired, or no
	// record exists for the email. Attempt-count errors unwrap to this.
	ErrOTPInvalid = errors.New("otp invalid or expired")

	// ErrOTPAttemptsExceeded is returned after three failed submissions
	// against one OTP record. The record is destroyed; a fresh request is
	// required.
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")

	// ErrMailDispatchFailed wraps mail sender failures. The OTP record is
	// already committed when this is returned; retrying the send is the
	// caller's responsibility.
	ErrMailDispatchFailed = errors.New("otp mail dispatch failed")

	// ErrSessionExpired is returned by ValidateSession for a well-signed token
	// past its expiry.
	ErrSessionExpired = errors.New("session token expired")

	// ErrSessionSignature is returned by ValidateSession when the token
	// signature does not verify.
	ErrSessionSignature = errors.New("session token signature invalid")

	// ErrSessionInvalid is returned by ValidateSession for tokens that cannot
	// be parsed at all.
	ErrSessionInvalid = errors.New("session token invalid")

	// ErrStoreUnavailable wraps account store failures.
	ErrStoreUnavailable = errors.New("account store unavailable")

	// ErrInternal wraps failures inside the engine's own machinery (hashing,
	// token signing) that are neither the caller's fault nor a collaborator
	// outage with a more specific sentinel.
	ErrInternal = errors.New("internal error")

	// ErrResetUnavailable wraps OTP state backend failures.
	ErrResetUnavailable = errors.New("reset state backend unavailable")
)

// ThrottledError reports how long the caller must wait before the hourly OTP
// request window reopens. It unwraps to [ErrResetRateLimited].
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("password reset rate limited, retry in %d minute(s)", retryMinutes(e.RetryAfter))
}

func (e *ThrottledError) Unwrap() error {
	return ErrResetRateLimited
}

// RetryMinutes is RetryAfter rounded up to whole minutes, matching the
// wording shown to end users.
func (e *ThrottledError) RetryMinutes() int {
	return retryMinutes(e.RetryAfter)
}

func retryMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	m := int((d + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// LoginThrottledError reports how long a client IP must wait before its
// login attempt window reopens. It unwraps to [ErrLoginRateLimited].
type LoginThrottledError struct {
	RetryAfter time.Duration
}

func (e *LoginThrottledError) Error() string {
	return fmt.Sprintf("login rate limited, retry in %d minute(s)", retryMinutes(e.RetryAfter))
}

func (e *LoginThrottledError) Unwrap() error {
	return ErrLoginRateLimited
}

// RetryMinutes is RetryAfter rounded up to whole minutes.
func (e *LoginThrottledError) RetryMinutes() int {
	return retryMinutes(e.RetryAfter)
}

// OTPAttemptsError reports how many verification attempts remain against the
// current OTP record. It unwraps to [ErrOTPInvalid].
type OTPAttemptsError struct {
	Remaining int
}

func (e *OTPAttemptsError) Error() string {
	return fmt.Sprintf("otp invalid or expired, %d attempt(s) remaining", e.Remaining)
}

func (e *OTPAttemptsError) Unwrap() error {
	return ErrOTPInvalid
}
