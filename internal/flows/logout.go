package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
)

type LogoutSessionStore interface {
	Revoke(ctx context.Context, userID, sessionID string) (bool, error)
	RevokeAll(ctx context.Context, userID string) (int, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	DecodeRefresh func(string) (*jwt.RefreshClaims, error)
	SessionStore  LogoutSessionStore
}

// LogoutFailureKind classifies logout failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecode
	LogoutFailureStore
)

// LogoutResult reports which session was targeted. Revoked is false when
// the session was already gone, which is not a failure.
type LogoutResult struct {
	Failure   LogoutFailureKind
	Err       error
	UserID    string
	SessionID string
	Revoked   bool
}

// RunLogout revokes the session named by a still-valid refresh token.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.DecodeRefresh(refreshToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureDecode, Err: err}
	}

	revoked, err := deps.SessionStore.Revoke(ctx, claims.UserID, claims.SessionID)
	if err != nil {
		return LogoutResult{
			Failure:   LogoutFailureStore,
			Err:       err,
			UserID:    claims.UserID,
			SessionID: claims.SessionID,
		}
	}
	return LogoutResult{UserID: claims.UserID, SessionID: claims.SessionID, Revoked: revoked}
}

// RunLogoutAll revokes every session of userID.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	return deps.SessionStore.RevokeAll(ctx, userID)
}
