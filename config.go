package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Config is the full engine configuration. Start from DefaultConfig and
// override what you need; JWT.Secret has no default.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Refresh  RefreshConfig
	Login    LoginConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

type JWTConfig struct {
	Secret     []byte
	Algorithm  string // "HS256" (default), "HS384" or "HS512"
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix string
	// OperationTimeout bounds every session store call. A timeout is
	// reported as ErrStoreUnavailable.
	OperationTimeout time.Duration
}

// RefreshConfig controls the rotation flow.
type RefreshConfig struct {
	// CheckUser re-reads the token owner before the session is consumed so a
	// deactivated user cannot rotate. The session is revoked in that case.
	CheckUser bool
}

type LoginConfig struct {
	RecordHistory bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MaxSecretBytes int
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. The caller must still set
// JWT.Secret.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			Algorithm:  string(jwt.HS256),
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix:      "authcore",
			OperationTimeout: 2 * time.Second,
		},
		Refresh: RefreshConfig{
			CheckUser: true,
		},
		Login: LoginConfig{
			RecordHistory: true,
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			MaxSecretBytes: pw.MaxSecretBytes,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found. A missing signing
// secret is always an error.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret is required")
	}
	if len(c.JWT.Secret) < jwt.MinSecretBytes {
		return fmt.Errorf("JWT Secret must be at least %d bytes", jwt.MinSecretBytes)
	}
	switch jwt.Algorithm(c.JWT.Algorithm) {
	case jwt.HS256, jwt.HS384, jwt.HS512:
	default:
		return fmt.Errorf("unsupported JWT algorithm %q", c.JWT.Algorithm)
	}
	if c.JWT.AccessTTL < time.Second {
		return errors.New("JWT AccessTTL must be >= 1s")
	}
	if c.JWT.RefreshTTL < time.Second {
		return errors.New("JWT RefreshTTL must be >= 1s")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.OperationTimeout <= 0 {
		return errors.New("Session OperationTimeout must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxSecretBytes < 0 {
		return errors.New("Password MaxSecretBytes must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func (c Config) passwordConfig() password.Config {
	return password.Config{
		Memory:         c.Password.Memory,
		Time:           c.Password.Time,
		Parallelism:    c.Password.Parallelism,
		SaltLength:     c.Password.SaltLength,
		KeyLength:      c.Password.KeyLength,
		MaxSecretBytes: c.Password.MaxSecretBytes,
	}
}
