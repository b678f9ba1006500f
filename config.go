package authcore

import (
	"errors"
	"time"
)

// Config carries all engine tuning. Zero values are rejected by
// [Builder.Build]; start from [DefaultConfig].
type Config struct {
	Lockout       LockoutConfig
	LoginThrottle LoginThrottleConfig
	OTP           OTPConfig
	Passwd        PasswordConfig
	Session       SessionConfig
	Audit         AuditConfig
	Mail          MailConfig
}

// LockoutConfig tunes the progressive account lockout.
type LockoutConfig struct {
	// Threshold is the consecutive-failure count that triggers a lock.
	Threshold int
	// Duration is how long a triggered lock rejects logins.
	Duration time.Duration
}

// LoginThrottleConfig tunes the per-IP login throttle. It is independent of
// the per-account lockout: the lockout protects one account from a
// determined attacker, the throttle protects the whole login endpoint from
// one source address.
type LoginThrottleConfig struct {
	Enabled bool
	// MaxAttempts caps login attempts per client IP per Window.
	MaxAttempts int
	// Window is the fixed throttle window.
	Window time.Duration
}

// OTPConfig tunes the password-reset passcode protocol.
type OTPConfig struct {
	// Digits is the passcode length. Always ASCII digits.
	Digits int
	// TTL is the passcode validity window from issuance.
	TTL time.Duration
	// MaxRequests caps passcode issuance per email per RequestWindow.
	MaxRequests int
	// RequestWindow is the fixed throttle window for issuance.
	RequestWindow time.Duration
	// MaxAttempts caps failed verifications against one passcode record.
	MaxAttempts int
	// RedisPrefix namespaces the engine's keys in the shared Redis.
	RedisPrefix string
}

// PasswordConfig tunes the credential hasher.
type PasswordConfig struct {
	// Cost is the bcrypt work factor.
	Cost int
	// PoolSize caps concurrent hash computations so one slow login cannot
	// starve unrelated requests. 0 means GOMAXPROCS.
	PoolSize int
}

// SessionConfig tunes session token issuance.
type SessionConfig struct {
	// Secret is the server-held HMAC signing secret, minimum 32 bytes.
	Secret []byte
	// TTL is the fixed token lifetime.
	TTL time.Duration
	// Issuer is stamped into the token's iss claim when non-empty.
	Issuer string
	// Leeway tolerates clock skew during validation.
	Leeway time.Duration
}

// AuditConfig tunes the login audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops entries instead of blocking when the buffer is full.
	// Dropped counts are observable via [Engine.AuditDropped].
	DropIfFull bool
}

// MailConfig tunes the OTP mail.
type MailConfig struct {
	// Subject of the OTP message.
	Subject string
	// Body renders the message body for a passcode. nil uses the built-in
	// HTML template.
	Body func(code string, ttl time.Duration) string
}

// DefaultConfig returns the production defaults: five failures lock for
// fifteen minutes, five login attempts per IP per fifteen minutes,
// six-digit passcodes live five minutes with two requests per hour and
// three attempts, bcrypt cost 12, 24-hour sessions.
func DefaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		LoginThrottle: LoginThrottleConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		OTP: OTPConfig{
			Digits:        6,
			TTL:           5 * time.Minute,
			MaxRequests:   2,
			RequestWindow: time.Hour,
			MaxAttempts:   3,
			RedisPrefix:   "va",
		},
		Passwd: PasswordConfig{
			Cost: 12,
		},
		Session: SessionConfig{
			TTL:    24 * time.Hour,
			Leeway: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Mail: MailConfig{
			Subject: "Password reset passcode",
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Lockout.Threshold < 1 {
		return errors.New("lockout threshold must be >= 1")
	}
	if cfg.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if cfg.LoginThrottle.Enabled {
		if cfg.LoginThrottle.MaxAttempts < 1 {
			return errors.New("login throttle attempts must be >= 1")
		}
		if cfg.LoginThrottle.Window <= 0 {
			return errors.New("login throttle window must be positive")
		}
	}
	if cfg.OTP.Digits < 6 || cfg.OTP.Digits > 10 {
		return errors.New("otp digits must be between 6 and 10")
	}
	if cfg.OTP.TTL <= 0 {
		return errors.New("otp ttl must be positive")
	}
	if cfg.OTP.MaxRequests < 1 {
		return errors.New("otp request budget must be >= 1")
	}
	if cfg.OTP.RequestWindow <= 0 {
		return errors.New("otp request window must be positive")
	}
	if cfg.OTP.MaxAttempts < 1 {
		return errors.New("otp attempt cap must be >= 1")
	}
	if cfg.OTP.RedisPrefix == "" {
		return errors.New("otp redis prefix must not be empty")
	}
	if len(cfg.Session.Secret) < 32 {
		return errors.New("session secret must be at least 32 bytes")
	}
	if cfg.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if cfg.Session.Leeway < 0 || cfg.Session.Leeway > 2*time.Minute {
		return errors.New("session leeway must be between 0 and 2 minutes")
	}
	if cfg.Passwd.Cost < 10 || cfg.Passwd.Cost > 31 {
		return errors.New("password cost must be between 10 and 31")
	}
	if cfg.Passwd.PoolSize < 0 {
		return errors.New("password pool size must not be negative")
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}
	return nil
}
