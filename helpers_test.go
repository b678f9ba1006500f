package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/volunteerhub/authcore/password"
)

// testClock is a manually advanced clock shared by the engine and the mock
// store so lockout expiries and OTP TTLs move together.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type mockAccountStore struct {
	mu   sync.Mutex
	byID map[string]Account
	now  func() time.Time
	fail error

	recordFailedCalls int
	resetCalls        int
	// lockTrippedAt is the failure count at the moment the lock was first
	// set, 0 while unlocked.
	lockTrippedAt int
}

func newMockAccountStore(now func() time.Time) *mockAccountStore {
	return &mockAccountStore{
		byID: make(map[string]Account),
		now:  now,
	}
}

func (m *mockAccountStore) add(acct Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[acct.ID] = acct
}

func (m *mockAccountStore) get(id string) Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *mockAccountStore) FindByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Account{}, m.fail
	}
	for _, acct := range m.byID {
		if acct.Email == email {
			return acct, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (m *mockAccountStore) FindByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Account{}, m.fail
	}
	acct, ok := m.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acct, nil
}

func (m *mockAccountStore) EmailTaken(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	for _, acct := range m.byID {
		if acct.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountStore) UsernameTaken(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	for _, acct := range m.byID {
		if acct.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountStore) Create(_ context.Context, acct Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for _, existing := range m.byID {
		if existing.Email == acct.Email {
			return ErrEmailExists
		}
		if existing.Username == acct.Username {
			return ErrUsernameExists
		}
	}
	m.byID[acct.ID] = acct
	return nil
}

func (m *mockAccountStore) UpdateCredentialHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	acct, ok := m.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.CredentialHash = hash
	m.byID[id] = acct
	return nil
}

func (m *mockAccountStore) RecordFailedLogin(_ context.Context, id string, threshold int, lockFor time.Duration) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordFailedCalls++
	if m.fail != nil {
		return Account{}, m.fail
	}
	acct, ok := m.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	acct.FailedAttempts++
	if acct.FailedAttempts >= threshold {
		until := m.now().Add(lockFor)
		if acct.LockedUntil == nil {
			m.lockTrippedAt = acct.FailedAttempts
		}
		acct.LockedUntil = &until
	}
	m.byID[id] = acct
	return acct, nil
}

func (m *mockAccountStore) ResetLockout(_ context.Context, id string, lastLogin time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	if m.fail != nil {
		return m.fail
	}
	acct, ok := m.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.FailedAttempts = 0
	acct.LockedUntil = nil
	acct.LastLogin = &lastLogin
	m.byID[id] = acct
	return nil
}

func (m *mockAccountStore) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	acct, ok := m.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.Active = false
	m.byID[id] = acct
	return nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type mockMailSender struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (m *mockMailSender) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *mockMailSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockMailSender) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail was sent")
	}
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	store  *mockAccountStore
	mail   *mockMailSender
	clock  *testClock
	sink   *ChannelSink
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	clock := newTestClock()
	store := newMockAccountStore(clock.Now)
	mail := &mockMailSender{}
	sink := NewChannelSink(64)

	cfg := DefaultConfig()
	cfg.Passwd.Cost = 10
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Mail bodies carry only the passcode so tests can read it back.
	cfg.Mail.Body = func(code string, _ time.Duration) string { return code }

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(store).
		WithMailSender(mail).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine: engine,
		mr:     mr,
		store:  store,
		mail:   mail,
		clock:  clock,
		sink:   sink,
	}
}

// seedAccount registers an account directly in the mock store with the given
// credential, bypassing Register so login tests control every field.
func (env *testEnv) seedAccount(t *testing.T, id, email, secret string) Account {
	t.Helper()

	hasher, err := password.NewHasher(password.Config{Cost: 10})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	hash, err := hasher.Hash(secret)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}

	acct := Account{
		ID:             id,
		Username:       "user_" + id,
		Email:          email,
		CredentialHash: hash,
		Role:           RoleUser,
		Active:         true,
		CreatedAt:      env.clock.Now(),
	}
	env.store.add(acct)
	return acct
}

// awaitAudit drains the next audit entry or fails after a short wait.
func (env *testEnv) awaitAudit(t *testing.T) LoginAuditEntry {
	t.Helper()

	select {
	case entry := <-env.sink.Entries():
		return entry
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit entry")
		return LoginAuditEntry{}
	}
}
