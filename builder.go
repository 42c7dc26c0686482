package authcore

import (
	"errors"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it during startup and call Build
// once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	roles       *permission.RoleManager
	permissions []string
	roleDefs    []permission.RoleDef

	userProvider UserProvider
	auditSink    AuditSink
	logger       *slog.Logger
	reporter     FailureReporter
	now          func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithRoles installs a prepared role manager. It is frozen by Build.
func (b *Builder) WithRoles(rm *permission.RoleManager) *Builder {
	b.roles = rm
	return b
}

// WithRoleDefinitions builds the role manager from a permission catalogue
// and role definitions at Build time. Ignored when WithRoles is used.
func (b *Builder) WithRoleDefinitions(permissions []string, roles []permission.RoleDef) *Builder {
	b.permissions = append([]string(nil), permissions...)
	b.roleDefs = append([]permission.RoleDef(nil), roles...)
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithFailureReporter(fn FailureReporter) *Builder {
	b.reporter = fn
	return b
}

// WithClock overrides time.Now for token stamps, expiry checks and login
// history. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A missing secret,
// redis client or user provider is an error.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// -------- ROLE MANAGER --------
	roles := b.roles
	if roles == nil {
		rm, err := permission.Load(b.permissions, b.roleDefs)
		if err != nil {
			return nil, err
		}
		roles = rm
	}
	roles.Freeze()

	// -------- CODECS --------
	codec, err := jwt.NewCodec(jwt.Config{
		Secret:     cfg.JWT.Secret,
		Algorithm:  jwt.Algorithm(cfg.JWT.Algorithm),
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}
	// Verified against when the email is unknown so both failure paths pay
	// for one Argon2id derivation.
	dummyHash, err := hasher.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.OperationTimeout),
		codec:        codec,
		hasher:       hasher,
		dummyHash:    dummyHash,
		userProvider: b.userProvider,
		logger:       logger.With("component", "authcore"),
		reporter:     b.reporter,
		now:          now,
		metrics:      NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	engine.roles.Store(roles)
	engine.flowDeps = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
