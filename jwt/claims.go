package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the claim set of an access token. Field names are part of
// the wire contract with cookie clients.
type AccessClaims struct {
	UserID    string   `json:"user_id"`
	IssuedAt  int64    `json:"issued_at"`
	ExpiresAt int64    `json:"expires_at"`
	Roles     []string `json:"roles,omitempty"`
}

// RefreshClaims extends AccessClaims with the session identifier tracked by
// the session store.
type RefreshClaims struct {
	AccessClaims
	SessionID string `json:"session_id"`
}

// IssuedTime returns issued_at as a UTC time.
func (c AccessClaims) IssuedTime() time.Time {
	return time.Unix(c.IssuedAt, 0).UTC()
}

// ExpiresTime returns expires_at as a UTC time.
func (c AccessClaims) ExpiresTime() time.Time {
	return time.Unix(c.ExpiresAt, 0).UTC()
}

// The methods below satisfy jwt.Claims. Registered-claim validation is
// disabled in the parser; expiry is checked explicitly by the Codec.

func (c AccessClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(c.ExpiresTime()), nil
}

func (c AccessClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	if c.IssuedAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(c.IssuedTime()), nil
}

func (c AccessClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c AccessClaims) GetIssuer() (string, error)              { return "", nil }
func (c AccessClaims) GetSubject() (string, error)             { return c.UserID, nil }
func (c AccessClaims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }
