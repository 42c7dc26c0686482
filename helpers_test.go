package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type mockUserProvider struct {
	mu         sync.Mutex
	users      map[string]User
	roles      map[string][]string
	history    []LoginHistoryEntry
	historyErr error
	lookupErr  error
	byIDCalls  int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users: make(map[string]User),
		roles: make(map[string][]string),
	}
}

func (m *mockUserProvider) add(t *testing.T, id, email, secret string, roles ...string) {
	t.Helper()
	h, err := password.NewHasher(fastPasswordConfig())
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	hash, err := h.Hash(secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = User{ID: id, Email: email, PasswordHash: hash, Active: true, Verified: true}
	m.roles[id] = roles
}

func (m *mockUserProvider) update(id string, fn func(*User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	fn(&u)
	m.users[id] = u
}

func (m *mockUserProvider) FindUserByID(_ context.Context, userID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byIDCalls++
	if m.lookupErr != nil {
		return User{}, m.lookupErr
	}
	u, ok := m.users[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserProvider) FindUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return User{}, m.lookupErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("email %q: %w", email, ErrUserNotFound)
}

func (m *mockUserProvider) GetRolesForUser(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.roles[userID]...), nil
}

func (m *mockUserProvider) AppendLoginHistory(_ context.Context, entry LoginHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	m.history = append(m.history, entry)
	return nil
}

func (m *mockUserProvider) historyLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

var errLookupDown = errors.New("user db down")

func fastPasswordConfig() password.Config {
	return password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte(testSecret)
	cfg.Session.OperationTimeout = 500 * time.Millisecond
	pw := fastPasswordConfig()
	cfg.Password.Memory = pw.Memory
	cfg.Password.Time = pw.Time
	cfg.Password.Parallelism = pw.Parallelism
	return cfg
}

func testRoles() ([]string, []permission.RoleDef) {
	return []string{"articles.read", "articles.write", "roles.manage"},
		[]permission.RoleDef{
			{Name: "reader", Permissions: []string{"articles.read"}},
			{Name: "editor", Permissions: []string{"articles.read", "articles.write"}},
			{Name: "admin", Permissions: []string{"roles.manage"}},
		}
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	users  *mockUserProvider
	clock  *testClock
}

func newTestEnv(t *testing.T, mutate func(*Config, *Builder)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	users := newMockUserProvider()
	users.add(t, "u-alice", "alice@example.com", "correct-password-123", "editor")
	users.add(t, "u-bob", "bob@example.com", "bob-password-456", "reader")

	clock := newTestClock()
	perms, roles := testRoles()

	cfg := testConfig()
	b := New().
		WithRedis(rdb).
		WithUserProvider(users).
		WithRoleDefinitions(perms, roles).
		WithClock(clock.Now)
	if mutate != nil {
		mutate(&cfg, b)
	}
	b.WithConfig(cfg)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, mr: mr, rdb: rdb, users: users, clock: clock}
}

func (env *testEnv) login(t *testing.T, email, secret string) *TokenPair {
	t.Helper()
	pair, err := env.engine.Login(context.Background(), email, secret)
	if err != nil {
		t.Fatalf("Login(%s): %v", email, err)
	}
	return pair
}
