package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired is returned for a well-signed token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrSignature is returned when the signature does not verify.
	ErrSignature = errors.New("token signature invalid")
	// ErrMalformed is returned for tokens that cannot be parsed.
	ErrMalformed = errors.New("token malformed")
)

// Config holds the signing parameters.
//
// Config instances are validated once by [NewManager] and treated as
// immutable afterwards.
type Config struct {
	// Secret is the server-held HMAC-SHA256 signing secret, minimum 32 bytes.
	Secret []byte
	// TTL is the fixed token lifetime.
	TTL time.Duration
	// Issuer is stamped and enforced when non-empty.
	Issuer string
	// Leeway tolerates clock skew during validation.
	Leeway time.Duration
}

// Claims is the decoded token payload.
type Claims struct {
	AccountID string `json:"uid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and validates session tokens. Safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// Issue mints a signed token for the account. The expiry is always
// now + TTL; callers cannot extend it.
func (m *Manager) Issue(accountID, role string) (string, error) {
	if accountID == "" {
		return "", errors.New("account id must not be empty")
	}

	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Validate verifies the signature and expiry of tokenStr and returns its
// claims. Signature failures and expiry are reported distinctly so callers
// can tell tampering from a stale session.
func (m *Manager) Validate(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignature
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.AccountID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}
