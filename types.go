package authcore

import (
	"context"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	// RoleUser is the default role assigned at registration.
	RoleUser Role = "user"
	// RoleAdmin can manage activities and review student submissions.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin can additionally manage other administrators.
	RoleSuperAdmin Role = "superadmin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Account is the identity record this subsystem authenticates. FailedAttempts
// and LockedUntil are mutated only by the lockout transitions in
// [AccountStore]; a successful verification always clears both.
type Account struct {
	ID             string
	Username       string
	Email          string
	CredentialHash string

	// PhoneHash is the bcrypt digest of the registration phone number;
	// PhoneSuffix keeps its last three digits in clear for operator-side
	// identity confirmation.
	PhoneHash   string
	PhoneSuffix string

	Role           Role
	FailedAttempts int
	LockedUntil    *time.Time
	Active         bool
	LastLogin      *time.Time
	CreatedAt      time.Time
}

// AccountStore is the durable account collaborator. Implementations must make
// RecordFailedLogin a single atomic conditional update per row (check-and-set
// or a row-level lock): two concurrent failed logins for the same account
// must never both observe the pre-increment counter.
//
// Lookup methods return [ErrAccountNotFound] for missing rows. Accounts are
// never physically deleted through this interface; Deactivate soft-disables.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)

	EmailTaken(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, acct Account) error

	UpdateCredentialHash(ctx context.Context, id, hash string) error

	// RecordFailedLogin atomically increments the failure counter and, when
	// the post-increment count reaches threshold, sets the lock expiry to
	// now + lockFor. It returns the post-update account.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockFor time.Duration) (Account, error)

	// ResetLockout clears the failure counter and lock expiry and stamps the
	// last successful login.
	ResetLockout(ctx context.Context, id string, lastLogin time.Time) error

	Deactivate(ctx context.Context, id string) error
}

// MailSender delivers the OTP mail. The contract is at-least-once: a nil
// return means the message was accepted for delivery, not that it arrived.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Identity is the verified identity a successful login or session validation
// yields.
type Identity struct {
	AccountID string
	Username  string
	Role      Role
}

// LoginResult is returned by [Engine.Login] on success.
type LoginResult struct {
	Identity Identity

	// Token is the signed session token minted for the verified identity.
	Token string
}

// RegisterInput is the input for [Engine.Register]. Password and PhoneNumber
// are hashed before storage; only the phone's last three digits are retained
// in clear.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	PhoneNumber string
}
