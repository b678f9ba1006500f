package authcore

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/volunteerhub/authcore/password"
	"github.com/volunteerhub/authcore/token"
)

// Engine is the authentication engine. Construct it through [Builder.Build];
// after that, all methods are safe for concurrent use. The engine holds no
// cross-account locks: account state is serialized per row by the account
// store, OTP state per key by Redis.
type Engine struct {
	config       Config
	accounts     AccountStore
	hasher       *password.Pool
	tokens       *token.Manager
	otpStore     *otpStore
	otpLimiter   *otpRequestLimiter
	loginLimiter *loginIPLimiter
	lockout      *lockoutEngine
	audit        *auditDispatcher
	mailer       MailSender

	// now is the engine clock, replaceable in tests.
	now func() time.Time
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit entries were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) ready() bool {
	return e != nil && e.accounts != nil && e.hasher != nil && e.tokens != nil
}

// auditLogin appends exactly one entry for a login attempt branch. Appends
// are fire-and-forget: sink trouble never surfaces to the login caller.
func (e *Engine) auditLogin(ctx context.Context, outcome AuditOutcome, accountID, email, failReason string) {
	if e == nil || e.audit == nil {
		return
	}

	e.audit.Append(ctx, LoginAuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  e.now(),
		AccountID:  accountID,
		Email:      email,
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Outcome:    outcome,
		FailReason: failReason,
	})
}

// newOTP draws a numeric passcode of the given length from crypto/rand.
func newOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
