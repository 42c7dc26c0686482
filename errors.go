package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/session"
)

var (
	// ErrInvalidCredentials covers an unknown email and a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveUser is returned when a deactivated user logs in, refreshes
	// or presents a still-valid access token.
	ErrInactiveUser = errors.New("inactive user")
	// ErrMalformedToken is returned for a token that fails structure,
	// signature or type checks.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken is returned when the clock is at or past expires_at.
	ErrExpiredToken = errors.New("expired token")
	// ErrUnknownOrConsumedSession is returned when a refresh token's session
	// was already redeemed, revoked, expired or never registered.
	ErrUnknownOrConsumedSession = errors.New("unknown or consumed session")
	// ErrStoreUnavailable is a server-side failure of the session store. It
	// never means the session is absent.
	ErrStoreUnavailable = session.ErrStoreUnavailable
	// ErrDuplicateName is returned when a role or permission name is taken.
	ErrDuplicateName = permission.ErrDuplicateName
	// ErrUnknownPermission is returned when a role references a missing permission.
	ErrUnknownPermission = permission.ErrUnknownPermission
	// ErrPermissionDenied is returned by RequireRole and RequirePermission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUserNotFound is returned by a UserProvider for a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrCorruptPasswordHash signals a stored hash that cannot be parsed.
	ErrCorruptPasswordHash = errors.New("stored password hash is corrupt")
	// ErrUserLookup wraps UserProvider failures other than ErrUserNotFound.
	ErrUserLookup = errors.New("user lookup failed")
	// ErrTokenIssue is returned when a token pair could not be minted.
	ErrTokenIssue = errors.New("token issue failed")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsUnauthorized reports whether err belongs to the client-facing
// "unauthorized" class. Store and lookup failures are server errors and
// report false.
func IsUnauthorized(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrUserLookup),
		errors.Is(err, ErrCorruptPasswordHash),
		errors.Is(err, ErrTokenIssue):
		return false
	}
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInactiveUser) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrUnknownOrConsumedSession) ||
		errors.Is(err, ErrUserNotFound)
}
