package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/joho/godotenv"
)

// Config is the server's environment. Engine settings are folded into an
// authcore.Config by AuthConfig.
type Config struct {
	HTTPAddr           string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ShutdownTimeout    time.Duration

	JWTSecret     string
	JWTAlgorithm  string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	StoreTimeout  time.Duration

	DatabaseURL string

	CORSOrigins       []string
	LoginRateLimitRPM int
	CookieSecure      bool
	// LocationHeader names a request header set by a trusted edge proxy
	// (e.g. CF-IPCountry). Empty disables location capture.
	LocationHeader string

	AuditEnabled bool
	SentryDSN    string
	SentryEnv    string
	LogLevel     slog.Level
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAlgorithm:       getEnv("JWT_ALGORITHM", "HS256"),
		JWTAccessTTL:       getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL:      getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		RedisPrefix:        getEnv("REDIS_PREFIX", "authcore"),
		StoreTimeout:       getDuration("STORE_TIMEOUT", 2*time.Second),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
		LoginRateLimitRPM:  getInt("LOGIN_RATE_LIMIT_RPM", 10),
		CookieSecure:       getBool("COOKIE_SECURE", true),
		LocationHeader:     strings.TrimSpace(os.Getenv("LOCATION_HEADER")),
		AuditEnabled:       getBool("AUDIT_ENABLED", true),
		SentryDSN:          strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnv:          getEnv("SENTRY_ENVIRONMENT", "development"),
		LogLevel:           getLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR cannot be empty")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.LoginRateLimitRPM < 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_RPM cannot be negative")
	}

	authCfg := c.AuthConfig()
	if err := authCfg.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	return nil
}

// AuthConfig maps the environment onto engine settings, starting from
// authcore.DefaultConfig.
func (c *Config) AuthConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte(c.JWTSecret)
	cfg.JWT.Algorithm = c.JWTAlgorithm
	cfg.JWT.AccessTTL = c.JWTAccessTTL
	cfg.JWT.RefreshTTL = c.JWTRefreshTTL
	cfg.Session.RedisPrefix = c.RedisPrefix
	cfg.Session.OperationTimeout = c.StoreTimeout
	cfg.Audit.Enabled = c.AuditEnabled
	return cfg
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getLevel(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}

	return level
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
