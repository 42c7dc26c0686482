package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/store/pg"
	"github.com/MrEthical07/authcore/internal/throttle"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/permission"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
)

// Permission names the admin routes check.
const (
	PermRolesManage = "roles.manage"
	PermUsersManage = "users.manage"
)

// Accounts is the persistence the handlers need beyond the engine's
// UserProvider. *pg.Store implements it.
type Accounts interface {
	CreateUser(ctx context.Context, in pg.NewUser) (authcore.User, error)
	FindUserByID(ctx context.Context, userID string) (authcore.User, error)
	AssignRole(ctx context.Context, userID, role string) error
	SetActive(ctx context.Context, userID string, active bool) error
	LoginHistory(ctx context.Context, userID string, limit int) ([]authcore.LoginHistoryEntry, error)
	CreateRole(ctx context.Context, name string, permissions []string) error
	ListRoles(ctx context.Context) ([]string, []permission.RoleDef, error)
}

type Options struct {
	Engine   *authcore.Engine
	Accounts Accounts
	// Throttle is optional; nil disables failed-login throttling.
	Throttle *throttle.LoginThrottle
	Logger   *slog.Logger
	Cookies  middleware.CookieConfig

	CORSOrigins       []string
	LoginRateLimitRPM int
	// LocationHeader is copied into login history as the client location
	// when set. Only name a header a trusted proxy overwrites.
	LocationHeader string
	// DefaultRole is assigned to newly registered users when non-empty.
	DefaultRole string

	// Registerer receives the HTTP request metrics. Nil skips them.
	Registerer prometheus.Registerer
	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
}

type api struct {
	engine      *authcore.Engine
	accounts    Accounts
	throttle    *throttle.LoginThrottle
	logger      *slog.Logger
	cookies     middleware.CookieConfig
	defaultRole string
	locationHdr string
}

func NewRouter(opts Options) (http.Handler, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if opts.Accounts == nil {
		return nil, errors.New("httpapi: accounts store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a := &api{
		engine:      opts.Engine,
		accounts:    opts.Accounts,
		throttle:    opts.Throttle,
		logger:      logger,
		cookies:     opts.Cookies,
		defaultRole: opts.DefaultRole,
		locationHdr: http.CanonicalHeaderKey(strings.TrimSpace(opts.LocationHeader)),
	}

	r := chi.NewRouter()
	r.Use(recovery(logger))
	r.Use(requestLogger(logger))
	if opts.Registerer != nil {
		m, err := newHTTPMetrics(opts.Registerer)
		if err != nil {
			return nil, err
		}
		r.Use(m.instrument)
	}
	r.Use(corsHandler(opts.CORSOrigins))

	r.Get("/health", a.health)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	limiter := newIPRateLimiter(opts.LoginRateLimitRPM)
	guard := middleware.Guard(opts.Engine)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.With(limiter.Handler).Post("/register", a.register)
		v1.With(limiter.Handler).Post("/login", a.login)
		v1.Post("/refresh", a.refresh)
		v1.Post("/logout", a.logout)

		v1.Group(func(authed chi.Router) {
			authed.Use(guard)
			authed.Get("/account", a.account)
			authed.Get("/account/history", a.history)
			authed.Get("/account/sessions", a.sessions)
			authed.Post("/account/logout-all", a.logoutAll)

			authed.With(middleware.RequirePermission(opts.Engine, PermRolesManage)).Get("/admin/roles", a.listRoles)
			authed.With(middleware.RequirePermission(opts.Engine, PermRolesManage)).Post("/admin/roles", a.createRole)
			authed.With(middleware.RequirePermission(opts.Engine, PermUsersManage)).Post("/admin/users/{id}/roles", a.assignRole)
			authed.With(middleware.RequirePermission(opts.Engine, PermUsersManage)).Post("/admin/users/{id}/deactivate", a.deactivate)
		})
	})

	return r, nil
}

// corsHandler allows credentials only for explicit origins; browsers refuse
// credentialed responses for a wildcard.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		MaxAge:           3600,
		AllowCredentials: !wildcard,
	})
	return handler.Handler
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	latency, err := a.engine.Ping(r.Context())
	if err != nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "UNAVAILABLE", "session store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"store_latency_ms": latency.Milliseconds(),
	})
}
