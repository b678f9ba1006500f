package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRequestPasswordResetSendsPasscode(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")

	if err := env.engine.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}

	mail := env.mail.last(t)
	if mail.to != "alice@example.com" {
		t.Fatalf("mail to = %q", mail.to)
	}
	if len(mail.body) != 6 {
		t.Fatalf("passcode length = %d, want 6", len(mail.body))
	}
	for _, r := range mail.body {
		if r < '0' || r > '9' {
			t.Fatalf("passcode %q is not numeric", mail.body)
		}
	}
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.RequestPasswordReset(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
	if env.mail.count() != 0 {
		t.Fatal("no mail should be sent for unknown emails")
	}
}

func TestRequestPasswordResetHourlyBudget(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}

	err := env.engine.RequestPasswordReset(ctx, "alice@example.com")
	if !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("third request: err = %v, want ErrResetRateLimited", err)
	}

	var throttled *ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("third request error is not a *ThrottledError: %v", err)
	}
	if got := throttled.RetryMinutes(); got < 1 || got > 60 {
		t.Fatalf("retry minutes = %d, want within (0, 60]", got)
	}
	if env.mail.count() != 2 {
		t.Fatalf("mails sent = %d, want 2", env.mail.count())
	}
}

func TestRequestPasswordResetWindowReopens(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("err = %v, want ErrResetRateLimited", err)
	}

	env.mr.FastForward(time.Hour + time.Second)
	env.clock.Advance(time.Hour + time.Second)

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request after window reset: %v", err)
	}
}

func TestRequestPasswordResetUnknownEmailDoesNotConsumeBudget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Unknown-email requests are rejected at account lookup, after the
	// throttle check but before the counter is charged.
	for i := 0; i < 5; i++ {
		if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("request %d: err = %v, want ErrAccountNotFound", i+1, err)
		}
	}

	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request after registration: %v", err)
	}
}

func TestRequestPasswordResetMailFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	ctx := context.Background()

	env.mail.fail = errors.New("smtp down")
	err := env.engine.RequestPasswordReset(ctx, "alice@example.com")
	if !errors.Is(err, ErrMailDispatchFailed) {
		t.Fatalf("err = %v, want ErrMailDispatchFailed", err)
	}

	// The record was committed before dispatch, so the failed send still
	// consumed one request of the window.
	env.mail.fail = nil
	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("third request: err = %v, want ErrResetRateLimited", err)
	}
}

func TestConfirmPasswordResetReplacesCredential(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := env.mail.last(t).body

	if err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", code, "NewSecret9!"); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}

	if _, err := env.engine.Login(ctx, "alice@example.com", "Password1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.engine.Login(ctx, "alice@example.com", "NewSecret9!"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestConfirmPasswordResetPasscodeSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := env.mail.last(t).body

	if err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", code, "NewSecret9!"); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}

	err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", code, "Another1!")
	if !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("replay: err = %v, want ErrOTPInvalid", err)
	}
}

func TestConfirmPasswordResetWrongCodeCountsDown(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := env.mail.last(t).body
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for want := 2; want >= 0; want-- {
		err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", wrong, "NewSecret9!")
		var attempts *OTPAttemptsError
		if !errors.As(err, &attempts) {
			t.Fatalf("err = %v, want *OTPAttemptsError", err)
		}
		if attempts.Remaining != want {
			t.Fatalf("remaining = %d, want %d", attempts.Remaining, want)
		}
	}

	// The cap is spent: even the genuine passcode is refused and the record
	// destroyed.
	if err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", code, "NewSecret9!"); !errors.Is(err, ErrOTPAttemptsExceeded) {
		t.Fatalf("err = %v, want ErrOTPAttemptsExceeded", err)
	}
	if _, err := env.engine.Login(ctx, "alice@example.com", "Password1!"); err != nil {
		t.Fatalf("original password must still work: %v", err)
	}
}

func TestConfirmPasswordResetWeakReplacementDoesNotBurnAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := env.mail.last(t).body

	if err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", code, "weak"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("err = %v, want ErrPasswordPolicy", err)
	}

	// The passcode budget is untouched; the same code still resets.
	if err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", code, "NewSecret9!"); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}
}

func TestConfirmPasswordResetExpiredPasscode(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := env.mail.last(t).body

	env.clock.Advance(5*time.Minute + time.Second)

	err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", code, "NewSecret9!")
	if !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("err = %v, want ErrOTPInvalid", err)
	}
}

func TestConfirmPasswordResetFreshRequestResetsAttempts(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "u1", "alice@example.com", "Password1!")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	first := env.mail.last(t).body
	wrong := "000000"
	if wrong == first {
		wrong = "000001"
	}
	for i := 0; i < 2; i++ {
		_ = env.engine.ConfirmPasswordReset(ctx, "alice@example.com", wrong, "NewSecret9!")
	}

	// A new passcode carries a full attempt budget.
	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("second request: %v", err)
	}
	second := env.mail.last(t).body

	err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", wrong, "NewSecret9!")
	var attempts *OTPAttemptsError
	if !errors.As(err, &attempts) {
		t.Fatalf("err = %v, want *OTPAttemptsError", err)
	}
	if attempts.Remaining != 2 {
		t.Fatalf("remaining = %d, want 2 after fresh passcode", attempts.Remaining)
	}

	if err := env.engine.ConfirmPasswordReset(ctx, "alice@example.com", second, "NewSecret9!"); err != nil {
		t.Fatalf("confirm with fresh passcode: %v", err)
	}
}
