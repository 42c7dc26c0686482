package flows

import (
	"context"
	"errors"
	"time"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	// LoginFailureCredentials covers unknown email and wrong password alike.
	LoginFailureCredentials
	LoginFailureInactive
	// LoginFailureCorruptHash: the stored hash could not be parsed.
	LoginFailureCorruptHash
	LoginFailureLookup
	LoginFailureRoles
	LoginFailureIssue
)

// LoginResult carries the issued pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	User    UserRecord
	Issued  IssueResult
}

// LoginHistoryRecord is one best-effort history row.
type LoginHistoryRecord struct {
	UserID    string
	Timestamp time.Time
	IPAddress string
	Location  string
	UserAgent string
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	FindUserByEmail func(ctx context.Context, email string) (UserRecord, error)
	UserNotFound    error
	VerifyPassword  func(storedHash, candidate string) (bool, error)
	MalformedHash   error
	// DummyHash is verified against when the email is unknown so both
	// failure paths cost the same.
	DummyHash     string
	RolesForUser  func(ctx context.Context, userID string) ([]string, error)
	Issue         func(ctx context.Context, userID string, roles []string) IssueResult
	AppendHistory func(ctx context.Context, rec LoginHistoryRecord) error

	ClientIP  func(context.Context) string
	UserAgent func(context.Context) string
	Location  func(context.Context) string
	Now       func() time.Time
	Warn      func(string, ...any)
}

// RunLogin verifies credentials, issues a pair and records login history.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	if email == "" || password == "" {
		return LoginResult{Failure: LoginFailureCredentials}
	}

	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		if deps.UserNotFound == nil || !errors.Is(err, deps.UserNotFound) {
			return LoginResult{Failure: LoginFailureLookup, Err: err}
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(deps.DummyHash, password)
		}
		return LoginResult{Failure: LoginFailureCredentials}
	}

	ok, err := deps.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		if deps.MalformedHash != nil && errors.Is(err, deps.MalformedHash) {
			return LoginResult{Failure: LoginFailureCorruptHash, Err: err, User: user}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err, User: user}
	}
	if !ok {
		return LoginResult{Failure: LoginFailureCredentials, User: user}
	}
	if !user.Active {
		return LoginResult{Failure: LoginFailureInactive, User: user}
	}

	roles, err := deps.RolesForUser(ctx, user.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureRoles, Err: err, User: user}
	}

	issued := deps.Issue(ctx, user.ID, roles)
	if issued.Failure != IssueFailureNone {
		return LoginResult{Failure: LoginFailureIssue, Err: issued.Err, User: user, Issued: issued}
	}

	if deps.AppendHistory != nil {
		rec := LoginHistoryRecord{UserID: user.ID, Timestamp: deps.Now().UTC()}
		if deps.ClientIP != nil {
			rec.IPAddress = deps.ClientIP(ctx)
		}
		if deps.UserAgent != nil {
			rec.UserAgent = deps.UserAgent(ctx)
		}
		if deps.Location != nil {
			rec.Location = deps.Location(ctx)
		}
		if err := deps.AppendHistory(ctx, rec); err != nil {
			deps.Warn("login history write failed", "user_id", user.ID, "error", err)
		}
	}

	return LoginResult{User: user, Issued: issued}
}
