package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/volunteerhub/authcore/token"
)

// IssueSession mints a signed session token for an already-verified
// identity. Login does this automatically; the explicit form exists for
// flows that verify identity elsewhere (e.g. after a confirmed password
// reset, when the product logs the user straight in).
func (e *Engine) IssueSession(ctx context.Context, identity Identity) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if !ValidRole(identity.Role) {
		return "", fmt.Errorf("%w: unknown role %q", ErrSessionInvalid, identity.Role)
	}

	tok, err := e.tokens.Issue(identity.AccountID, string(identity.Role))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return tok, nil
}

// ValidateSession verifies a session token's signature and expiry and
// returns the identity it carries. No server-side lookup is involved: expiry
// is the only invalidation, and logout is the client discarding its token.
//
// Tampering ([ErrSessionSignature]) and staleness ([ErrSessionExpired]) are
// reported distinctly; anything else unparseable is [ErrSessionInvalid].
func (e *Engine) ValidateSession(ctx context.Context, tokenStr string) (Identity, error) {
	if !e.ready() {
		return Identity{}, ErrEngineNotReady
	}

	claims, err := e.tokens.Validate(tokenStr)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return Identity{}, ErrSessionExpired
		case errors.Is(err, token.ErrSignature):
			return Identity{}, ErrSessionSignature
		default:
			return Identity{}, ErrSessionInvalid
		}
	}

	role := Role(claims.Role)
	if !ValidRole(role) {
		return Identity{}, ErrSessionInvalid
	}

	return Identity{
		AccountID: claims.AccountID,
		Role:      role,
	}, nil
}
