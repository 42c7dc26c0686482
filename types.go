package authcore

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/session"
)

// User is the persisted account as the engine sees it. The engine reads the
// id, the flags and the password hash; everything else belongs to the
// persistence layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool
	Superuser    bool
	Verified     bool
	RegisteredAt time.Time
}

// LoginHistoryEntry is one append-only login record. Location comes from
// WithLocation on the login context and is empty when none was attached.
type LoginHistoryEntry struct {
	ID        string
	UserID    string
	Timestamp time.Time
	IPAddress string
	Location  string
	UserAgent string
}

// UserProvider is the persistence collaborator. Implementations return
// ErrUserNotFound (possibly wrapped) for a missing user.
type UserProvider interface {
	FindUserByID(ctx context.Context, userID string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	GetRolesForUser(ctx context.Context, userID string) ([]string, error)
	// AppendLoginHistory is best effort; its errors are logged and dropped.
	AppendLoginHistory(ctx context.Context, entry LoginHistoryEntry) error
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// UserContext is the identity attached to an authenticated request. Roles
// come from the access token; the flags come from a live user lookup.
type UserContext struct {
	UserID    string
	Email     string
	Roles     []string
	Superuser bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether role is among the token's roles.
func (uc *UserContext) HasRole(role string) bool {
	if uc == nil {
		return false
	}
	for _, r := range uc.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SessionInfo describes one live refresh session.
type SessionInfo = session.Info

// FailureReporter receives infrastructure failures (store outages, session
// registration errors, corrupt hashes). It must not block.
type FailureReporter func(ctx context.Context, op string, err error)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs each event through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// Audit event types.
const (
	AuditLoginSuccess         = internalaudit.EventLoginSuccess
	AuditLoginFailure         = internalaudit.EventLoginFailure
	AuditRefreshSuccess       = internalaudit.EventRefreshSuccess
	AuditRefreshRejected      = internalaudit.EventRefreshRejected
	AuditRefreshReplay        = internalaudit.EventRefreshReplay
	AuditLogout               = internalaudit.EventLogout
	AuditLogoutAll            = internalaudit.EventLogoutAll
	AuditSessionRegisterError = internalaudit.EventSessionRegisterError
)

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
