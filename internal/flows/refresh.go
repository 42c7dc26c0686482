package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	// RefreshFailureDecode: signature, structure, type or expiry rejected.
	RefreshFailureDecode
	// RefreshFailureUser: the owner is missing or inactive.
	RefreshFailureUser
	// RefreshFailureUserLookup: the user collaborator failed.
	RefreshFailureUserLookup
	// RefreshFailureReplay: consume found no record.
	RefreshFailureReplay
	// RefreshFailureStore: the session store failed; not a rejection.
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshState names the rotation state reached before the flow stopped.
type RefreshState int

const (
	RefreshPresented RefreshState = iota
	RefreshValidated
	RefreshConsumed
	RefreshReissued
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	State     RefreshState
	Err       error
	UserID    string
	SessionID string
	Issued    IssueResult
}

type RefreshSessionStore interface {
	Consume(ctx context.Context, userID, sessionID string) (bool, error)
	Revoke(ctx context.Context, userID, sessionID string) (bool, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	DecodeRefresh func(string) (*jwt.RefreshClaims, error)
	// CheckUser, when set, runs before the session is consumed. Errors for
	// which UserRejected reports true reject the refresh; any other error
	// means the check could not be made.
	CheckUser    func(ctx context.Context, userID string) error
	UserRejected func(error) bool
	SessionStore RefreshSessionStore
	Issue        func(ctx context.Context, userID string, roles []string) IssueResult
	Warn         func(string, ...any)
}

// RunRefresh walks Presented -> Validated -> Consumed -> Reissued. Any
// failure stops the walk; only a successful consume leads to reissue.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.DecodeRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, State: RefreshPresented, Err: err}
	}

	base := RefreshResult{State: RefreshValidated, UserID: claims.UserID, SessionID: claims.SessionID}

	if deps.CheckUser != nil {
		if err := deps.CheckUser(ctx, claims.UserID); err != nil {
			if deps.UserRejected == nil || !deps.UserRejected(err) {
				base.Failure = RefreshFailureUserLookup
				base.Err = err
				return base
			}
			if _, revokeErr := deps.SessionStore.Revoke(ctx, claims.UserID, claims.SessionID); revokeErr != nil && deps.Warn != nil {
				deps.Warn("refresh: revoke for rejected user failed", "error", revokeErr)
			}
			base.Failure = RefreshFailureUser
			base.Err = err
			return base
		}
	}

	consumed, err := deps.SessionStore.Consume(ctx, claims.UserID, claims.SessionID)
	if err != nil {
		base.Failure = RefreshFailureStore
		base.Err = err
		return base
	}
	if !consumed {
		base.Failure = RefreshFailureReplay
		return base
	}
	base.State = RefreshConsumed

	issued := deps.Issue(ctx, claims.UserID, claims.Roles)
	base.Issued = issued
	if issued.Failure != IssueFailureNone {
		base.Failure = RefreshFailureIssue
		base.Err = issued.Err
		return base
	}
	base.State = RefreshReissued
	return base
}
