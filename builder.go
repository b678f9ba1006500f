package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/volunteerhub/authcore/password"
	"github.com/volunteerhub/authcore/token"
)

// Builder assembles an [Engine]. Configure collaborators with the With*
// methods, then call Build exactly once. Construction is allocation-only; no
// I/O happens until the engine serves its first request.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  AccountStore
	mailer    MailSender
	auditSink AuditSink

	clock func() time.Time
	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing OTP records, attempt counters, and
// request windows.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the durable account collaborator.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithMailSender sets the OTP mail collaborator.
func (b *Builder) WithMailSender(sender MailSender) *Builder {
	b.mailer = sender
	return b
}

// WithAuditSink sets the destination for login audit entries.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine clock. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account store is required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.mailer == nil {
		return nil, errors.New("mail sender is required")
	}

	hasher, err := password.NewHasher(password.Config{Cost: b.config.Passwd.Cost})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		Secret: b.config.Session.Secret,
		TTL:    b.config.Session.TTL,
		Issuer: b.config.Session.Issuer,
		Leeway: b.config.Session.Leeway,
	})
	if err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:     b.config,
		accounts:   b.accounts,
		hasher:     password.NewPool(hasher, b.config.Passwd.PoolSize),
		tokens:     tokens,
		otpStore:   newOTPStore(b.redis, b.config.OTP.RedisPrefix),
		otpLimiter: newOTPRequestLimiter(b.redis, b.config.OTP.RedisPrefix, b.config.OTP),
		lockout:    newLockoutEngine(b.accounts, b.config.Lockout, clock),
		audit:      newAuditDispatcher(b.config.Audit, b.auditSink),
		mailer:     b.mailer,
		now:        clock,
	}
	if b.config.LoginThrottle.Enabled {
		engine.loginLimiter = newLoginIPLimiter(b.redis, b.config.OTP.RedisPrefix, b.config.LoginThrottle)
	}

	b.built = true
	return engine, nil
}
