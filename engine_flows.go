package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// buildFlowDeps binds the engine's collaborators to the flow dependency
// sets once, at Build time.
func (e *Engine) buildFlowDeps() flows.Deps {
	issue := flows.IssueDeps{
		NewSessionID:  internal.NewSessionID,
		EncodeAccess:  e.codec.EncodeAccess,
		EncodeRefresh: e.codec.EncodeRefresh,
		SessionStore:  e.sessionStore,
	}
	runIssue := func(ctx context.Context, userID string, roles []string) flows.IssueResult {
		return flows.RunIssue(ctx, userID, roles, issue)
	}

	refresh := flows.RefreshDeps{
		DecodeRefresh: e.codec.DecodeRefresh,
		SessionStore:  e.sessionStore,
		Issue:         runIssue,
		Warn:          e.logger.Warn,
	}
	if e.config.Refresh.CheckUser {
		refresh.CheckUser = e.checkUserActive
		refresh.UserRejected = func(err error) bool {
			return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInactiveUser)
		}
	}

	login := flows.LoginDeps{
		FindUserByEmail: e.findUserByEmail,
		UserNotFound:    ErrUserNotFound,
		VerifyPassword:  e.hasher.Verify,
		MalformedHash:   password.ErrMalformedHash,
		DummyHash:       e.dummyHash,
		RolesForUser:    e.userProvider.GetRolesForUser,
		Issue:           runIssue,
		ClientIP:        clientIPFromContext,
		UserAgent:       userAgentFromContext,
		Location:        locationFromContext,
		Now:             e.now,
		Warn:            e.logger.Warn,
	}
	if e.config.Login.RecordHistory {
		login.AppendHistory = e.appendLoginHistory
	}

	return flows.Deps{
		Issue:   issue,
		Refresh: refresh,
		Authenticate: flows.AuthenticateDeps{
			DecodeAccess: e.codec.DecodeAccess,
			FindUserByID: e.findUserByID,
			UserNotFound: ErrUserNotFound,
		},
		Login: login,
		Logout: flows.LogoutDeps{
			DecodeRefresh: e.codec.DecodeRefresh,
			SessionStore:  e.sessionStore,
		},
	}
}

func toUserRecord(u User) flows.UserRecord {
	return flows.UserRecord{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		Superuser:    u.Superuser,
		Verified:     u.Verified,
	}
}

func (e *Engine) findUserByID(ctx context.Context, userID string) (flows.UserRecord, error) {
	u, err := e.userProvider.FindUserByID(ctx, userID)
	if err != nil {
		return flows.UserRecord{}, err
	}
	return toUserRecord(u), nil
}

func (e *Engine) findUserByEmail(ctx context.Context, email string) (flows.UserRecord, error) {
	u, err := e.userProvider.FindUserByEmail(ctx, email)
	if err != nil {
		return flows.UserRecord{}, err
	}
	return toUserRecord(u), nil
}

func (e *Engine) checkUserActive(ctx context.Context, userID string) error {
	u, err := e.userProvider.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.Active {
		return ErrInactiveUser
	}
	return nil
}

func (e *Engine) appendLoginHistory(ctx context.Context, rec flows.LoginHistoryRecord) error {
	return e.userProvider.AppendLoginHistory(ctx, LoginHistoryEntry{
		UserID:    rec.UserID,
		Timestamp: rec.Timestamp,
		IPAddress: rec.IPAddress,
		Location:  rec.Location,
		UserAgent: rec.UserAgent,
	})
}

// tokenError maps codec failures onto the two client-facing token errors.
func tokenError(err error) error {
	if errors.Is(err, jwt.ErrExpired) {
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedToken, err)
}
