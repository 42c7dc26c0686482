package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/store/pg"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// memAccounts is an in-memory Accounts and authcore.UserProvider.
type memAccounts struct {
	mu      sync.Mutex
	users   map[string]authcore.User
	roles   map[string][]string
	history map[string][]authcore.LoginHistoryEntry
	perms   []string
	grants  map[string][]string
}

func newMemAccounts(perms []string, grants map[string][]string) *memAccounts {
	return &memAccounts{
		users:   map[string]authcore.User{},
		roles:   map[string][]string{},
		history: map[string][]authcore.LoginHistoryEntry{},
		perms:   perms,
		grants:  grants,
	}
}

func (m *memAccounts) CreateUser(_ context.Context, in pg.NewUser) (authcore.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	for _, u := range m.users {
		if u.Email == email {
			return authcore.User{}, authcore.ErrDuplicateName
		}
	}
	u := authcore.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: in.PasswordHash,
		Active:       true,
		Superuser:    in.Superuser,
		RegisteredAt: time.Now().UTC(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memAccounts) FindUserByID(_ context.Context, id string) (authcore.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return authcore.User{}, authcore.ErrUserNotFound
	}
	return u, nil
}

func (m *memAccounts) FindUserByEmail(_ context.Context, email string) (authcore.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return authcore.User{}, authcore.ErrUserNotFound
}

func (m *memAccounts) GetRolesForUser(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.roles[id]...), nil
}

func (m *memAccounts) AppendLoginHistory(_ context.Context, e authcore.LoginHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[e.UserID] = append([]authcore.LoginHistoryEntry{e}, m.history[e.UserID]...)
	return nil
}

func (m *memAccounts) AssignRole(_ context.Context, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return authcore.ErrUserNotFound
	}
	if _, ok := m.grants[role]; !ok {
		return pg.ErrUnknownRole
	}
	m.roles[userID] = append(m.roles[userID], role)
	return nil
}

func (m *memAccounts) SetActive(_ context.Context, userID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	u.Active = active
	m.users[userID] = u
	return nil
}

func (m *memAccounts) LoginHistory(_ context.Context, userID string, limit int) ([]authcore.LoginHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history[userID]
	if len(h) > limit {
		h = h[:limit]
	}
	return append([]authcore.LoginHistoryEntry(nil), h...), nil
}

func (m *memAccounts) CreateRole(_ context.Context, name string, perms []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[name]; ok {
		return authcore.ErrDuplicateName
	}
	for _, p := range perms {
		found := false
		for _, known := range m.perms {
			found = found || known == p
		}
		if !found {
			return authcore.ErrUnknownPermission
		}
	}
	m.grants[name] = append([]string(nil), perms...)
	return nil
}

func (m *memAccounts) ListRoles(context.Context) ([]string, []permission.RoleDef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.grants))
	for name := range m.grants {
		names = append(names, name)
	}
	sort.Strings(names)
	roles := make([]permission.RoleDef, 0, len(names))
	for _, name := range names {
		roles = append(roles, permission.RoleDef{Name: name, Permissions: append([]string(nil), m.grants[name]...)})
	}
	return append([]string(nil), m.perms...), roles, nil
}

type harness struct {
	handler  http.Handler
	engine   *authcore.Engine
	accounts *memAccounts
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	registry *prometheus.Registry
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	accounts := newMemAccounts(
		[]string{"articles.read", PermRolesManage, PermUsersManage},
		map[string][]string{
			"admin":  {PermRolesManage, PermUsersManage},
			"reader": {"articles.read"},
		},
	)
	perms, roles, err := accounts.ListRoles(context.Background())
	require.NoError(t, err)

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Session.OperationTimeout = 500 * time.Millisecond
	cfg.Password.Memory, cfg.Password.Time, cfg.Password.Parallelism = 8*1024, 1, 1

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(accounts).
		WithRoleDefinitions(perms, roles).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	registry := prometheus.NewRegistry()
	opts := Options{
		Engine:   engine,
		Accounts: accounts,
		Cookies: middleware.CookieConfig{
			Path:        "/",
			RefreshPath: "/api/v1",
			SameSite:    http.SameSiteLaxMode,
		},
		DefaultRole: "reader",
		Registerer:  registry,
	}
	if mutate != nil {
		mutate(&opts)
	}

	handler, err := NewRouter(opts)
	require.NoError(t, err)
	return &harness{handler: handler, engine: engine, accounts: accounts, mr: mr, rdb: rdb, registry: registry}
}

func (h *harness) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (h *harness) register(t *testing.T, email, password string) userResponse {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/v1/register", credentialsRequest{Email: email, Password: password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (h *harness) login(t *testing.T, email, password string) (tokenResponse, []*http.Cookie) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/v1/login", credentialsRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out, rec.Result().Cookies()
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Error.Code
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
