package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	minCost = 10
	maxCost = 31

	// bcrypt ignores bytes past 72; longer inputs would silently collide.
	maxSecretBytes = 72
)

// Config tunes the hasher.
type Config struct {
	// Cost is the bcrypt work factor.
	Cost int
}

// Hasher produces and verifies salted bcrypt digests.
//
// Hasher instances are immutable after construction and safe for concurrent
// use.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Cost < minCost {
		return nil, errors.New("password cost must be >= 10")
	}
	if cfg.Cost > maxCost {
		return nil, errors.New("password cost must be <= 31")
	}

	return &Hasher{config: cfg}, nil
}

// Hash returns the salted digest of secret. It fails on empty or over-long
// input; everything else is hashed exactly as provided (no normalization).
func (h *Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	if len(secret) > maxSecretBytes {
		return "", errors.New("secret exceeds 72 bytes")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.config.Cost)
	if err != nil {
		return "", err
	}

	return string(digest), nil
}

// Verify reports whether secret matches the stored digest. A malformed digest
// is an error; a clean mismatch is (false, nil).
func (h *Hasher) Verify(secret, digest string) (bool, error) {
	if secret == "" {
		return false, errors.New("secret must not be empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
