package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// IssueFailureKind classifies issue flow failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureSessionID
	IssueFailureEncode
)

// IssueResult carries a minted token pair. RegisterErr is set when the
// session could not be recorded; the pair is still returned in that case.
type IssueResult struct {
	Failure          IssueFailureKind
	Err              error
	UserID           string
	SessionID        string
	Roles            []string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	RegisterErr      error
}

type IssueSessionStore interface {
	Register(ctx context.Context, userID, sessionID string, ttl time.Duration) error
}

// IssueDeps captures token issuance dependencies.
type IssueDeps struct {
	NewSessionID  func() (string, error)
	EncodeAccess  func(*jwt.AccessClaims) (string, error)
	EncodeRefresh func(*jwt.RefreshClaims) (string, error)
	SessionStore  IssueSessionStore
}

// RunIssue mints an access/refresh pair under a fresh session id and
// registers the session for the refresh token's lifetime.
func RunIssue(ctx context.Context, userID string, roles []string, deps IssueDeps) IssueResult {
	sessionID, err := deps.NewSessionID()
	if err != nil {
		return IssueResult{Failure: IssueFailureSessionID, Err: err, UserID: userID}
	}

	roles = append([]string(nil), roles...)

	accessClaims := &jwt.AccessClaims{UserID: userID, Roles: roles}
	access, err := deps.EncodeAccess(accessClaims)
	if err != nil {
		return IssueResult{Failure: IssueFailureEncode, Err: err, UserID: userID, SessionID: sessionID}
	}

	refreshClaims := &jwt.RefreshClaims{
		AccessClaims: jwt.AccessClaims{UserID: userID, Roles: roles},
		SessionID:    sessionID,
	}
	refresh, err := deps.EncodeRefresh(refreshClaims)
	if err != nil {
		return IssueResult{Failure: IssueFailureEncode, Err: err, UserID: userID, SessionID: sessionID}
	}

	lifetime := refreshClaims.ExpiresTime().Sub(refreshClaims.IssuedTime())
	registerErr := deps.SessionStore.Register(ctx, userID, sessionID, lifetime)

	return IssueResult{
		Failure:          IssueFailureNone,
		UserID:           userID,
		SessionID:        sessionID,
		Roles:            roles,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresTime(),
		RefreshExpiresAt: refreshClaims.ExpiresTime(),
		RegisterErr:      registerErr,
	}
}
