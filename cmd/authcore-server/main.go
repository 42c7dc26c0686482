// Command authcore-server runs the authcore HTTP API against Redis and
// Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/httpapi"
	"github.com/MrEthical07/authcore/internal/store/pg"
	"github.com/MrEthical07/authcore/internal/throttle"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const defaultRole = "user"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := initSentry(cfg.SentryDSN, cfg.SentryEnv); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	defer flushSentry()

	ctx := context.Background()

	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	if err := ensureBaseRoles(ctx, store); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	perms, roles, err := store.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	engine, err := authcore.New().
		WithConfig(cfg.AuthConfig()).
		WithRedis(rdb).
		WithUserProvider(store).
		WithRoleDefinitions(perms, roles).
		WithLogger(logger).
		WithAuditSink(authcore.NewSlogSink(logger.With("component", "audit"))).
		WithFailureReporter(reportToSentry).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("engine ready",
		"algorithm", report.SigningAlgorithm,
		"access_ttl", report.AccessTTL.String(),
		"refresh_ttl", report.RefreshTTL.String(),
		"refresh_checks_user", report.RefreshChecksUser,
		"audit", report.AuditEnabled,
		"roles", report.RoleCount)

	if _, err := engine.Ping(ctx); err != nil {
		logger.Warn("session store not reachable at startup", "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(engine),
	)

	cookies := middleware.DefaultCookieConfig()
	cookies.Secure = cfg.CookieSecure
	cookies.RefreshPath = "/api/v1"

	handler, err := httpapi.NewRouter(httpapi.Options{
		Engine:   engine,
		Accounts: store,
		Throttle: throttle.New(rdb, throttle.Config{
			Prefix:           cfg.RedisPrefix,
			MaxFailures:      throttle.DefaultConfig().MaxFailures,
			Window:           throttle.DefaultConfig().Window,
			ThrottleByIP:     true,
			OperationTimeout: cfg.StoreTimeout,
		}),
		Logger:            logger,
		Cookies:           cookies,
		CORSOrigins:       cfg.CORSOrigins,
		LoginRateLimitRPM: cfg.LoginRateLimitRPM,
		LocationHeader:    cfg.LocationHeader,
		DefaultRole:       defaultRole,
		Registerer:        registry,
		MetricsHandler:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       cfg.ServerReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// ensureBaseRoles creates the admin permissions, the admin role and the
// default role on first start. Existing rows are left alone.
func ensureBaseRoles(ctx context.Context, store *pg.Store) error {
	for _, perm := range []string{httpapi.PermRolesManage, httpapi.PermUsersManage} {
		if err := store.CreatePermission(ctx, perm); err != nil && !errors.Is(err, authcore.ErrDuplicateName) {
			return err
		}
	}
	base := map[string][]string{
		"admin":     {httpapi.PermRolesManage, httpapi.PermUsersManage},
		defaultRole: nil,
	}
	for name, grants := range base {
		if err := store.CreateRole(ctx, name, grants); err != nil && !errors.Is(err, authcore.ErrDuplicateName) {
			return err
		}
	}
	return nil
}
