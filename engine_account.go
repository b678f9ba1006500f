package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)
var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// Register creates a new account with the default user role. The password
// and phone number are hashed before storage; only the phone's last three
// digits are kept in clear so operators can confirm identity over the phone.
//
// Duplicate email and username are reported distinctly ([ErrEmailExists],
// [ErrUsernameExists]) so the registration form shows which field to fix.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}

	if err := validateRegisterInput(input); err != nil {
		return Account{}, err
	}

	taken, err := e.accounts.EmailTaken(ctx, input.Email)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if taken {
		return Account{}, ErrEmailExists
	}

	taken, err = e.accounts.UsernameTaken(ctx, input.Username)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if taken {
		return Account{}, ErrUsernameExists
	}

	credentialHash, err := e.hasher.Hash(ctx, input.Password)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	phoneHash, err := e.hasher.Hash(ctx, input.PhoneNumber)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	acct := Account{
		ID:             uuid.NewString(),
		Username:       input.Username,
		Email:          input.Email,
		CredentialHash: credentialHash,
		PhoneHash:      phoneHash,
		PhoneSuffix:    input.PhoneNumber[len(input.PhoneNumber)-3:],
		Role:           RoleUser,
		Active:         true,
		CreatedAt:      e.now(),
	}

	if err := e.accounts.Create(ctx, acct); err != nil {
		// The pre-checks race with concurrent registrations; the store's
		// unique constraints are authoritative.
		switch {
		case errors.Is(err, ErrEmailExists), errors.Is(err, ErrUsernameExists):
			return Account{}, err
		default:
			return Account{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return acct, nil
}

// EmailExists reports whether an account with the email is registered. Backs
// the registration form's live availability check.
func (e *Engine) EmailExists(ctx context.Context, email string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}

	taken, err := e.accounts.EmailTaken(ctx, email)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return taken, nil
}

// UsernameExists reports whether the username is registered.
func (e *Engine) UsernameExists(ctx context.Context, username string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}

	taken, err := e.accounts.UsernameTaken(ctx, username)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return taken, nil
}

// AccountByID fetches an account by its identifier, typically after a session
// token has been validated.
func (e *Engine) AccountByID(ctx context.Context, accountID string) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}

	acct, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return acct, nil
}

// DeactivateAccount soft-disables an account. Accounts are never physically
// deleted by this subsystem; a deactivated account fails login with the same
// generic rejection as a wrong password.
func (e *Engine) DeactivateAccount(ctx context.Context, accountID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if err := e.accounts.Deactivate(ctx, accountID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func validateRegisterInput(input RegisterInput) error {
	if !usernamePattern.MatchString(input.Username) {
		return ErrUsernamePolicy
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return ErrEmailInvalid
	}
	if err := validatePasswordPolicy(input.Password); err != nil {
		return err
	}
	if !phonePattern.MatchString(input.PhoneNumber) {
		return ErrPhonePolicy
	}
	return nil
}

// validatePasswordPolicy mirrors the registration form: at least 8
// characters with an upper-case letter, a lower-case letter, and a special
// character.
func validatePasswordPolicy(secret string) error {
	if len(secret) < 8 {
		return ErrPasswordPolicy
	}
	if !strings.ContainsFunc(secret, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		return ErrPasswordPolicy
	}
	if !strings.ContainsFunc(secret, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		return ErrPasswordPolicy
	}
	if !strings.ContainsAny(secret, `!@#$%^&*(),.?":{}|<>`) {
		return ErrPasswordPolicy
	}
	return nil
}
