package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/jwt"
)

// UserRecord is the flow-local view of a persisted user.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool
	Superuser    bool
	Verified     bool
}

// AuthenticateFailureKind classifies guard failures for root-level mapping.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureDecode
	AuthenticateFailureUserNotFound
	AuthenticateFailureInactive
	AuthenticateFailureLookup
)

// AuthenticateResult carries the verified claims and live user record.
type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
	User    UserRecord
}

// AuthenticateDeps captures guard dependencies.
type AuthenticateDeps struct {
	DecodeAccess func(string) (*jwt.AccessClaims, error)
	FindUserByID func(ctx context.Context, userID string) (UserRecord, error)
	UserNotFound error
}

// RunAuthenticate verifies an access token and re-reads the user so that a
// deactivated account is rejected even while its token is unexpired.
func RunAuthenticate(ctx context.Context, accessToken string, deps AuthenticateDeps) AuthenticateResult {
	claims, err := deps.DecodeAccess(accessToken)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureDecode, Err: err}
	}

	user, err := deps.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return AuthenticateResult{Failure: AuthenticateFailureUserNotFound, Err: err, Claims: claims}
		}
		return AuthenticateResult{Failure: AuthenticateFailureLookup, Err: err, Claims: claims}
	}
	if !user.Active {
		return AuthenticateResult{Failure: AuthenticateFailureInactive, Claims: claims, User: user}
	}

	return AuthenticateResult{Claims: claims, User: user}
}
