package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/session"
)

// Engine issues, rotates and revokes token pairs and answers authorization
// questions about them. It is safe for concurrent use; the only shared
// mutable state is the session store and the role manager pointer.
type Engine struct {
	config       Config
	sessionStore *session.Store
	codec        *jwt.Codec
	hasher       *password.Hasher
	dummyHash    string
	userProvider UserProvider
	roles        atomic.Pointer[permission.RoleManager]
	logger       *slog.Logger
	reporter     FailureReporter
	now          func() time.Time
	metrics      *Metrics
	audit        *internalaudit.Dispatcher
	flowDeps     flows.Deps
}

// Close drains the audit dispatcher. It does not close the redis client.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Stats().Dropped
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Ping checks the session store round trip.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	return e.sessionStore.Ping(ctx)
}

// Issue mints a token pair for userID under a fresh session id and
// registers the session. If registration fails the pair is still returned;
// its refresh token will simply never rotate.
func (e *Engine) Issue(ctx context.Context, userID string, roles []string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrTokenIssue)
	}

	res := flows.RunIssue(ctx, userID, roles, e.flowDeps.Issue)
	if res.Failure != flows.IssueFailureNone {
		e.report(ctx, "issue", res.Err)
		return nil, fmt.Errorf("%w: %v", ErrTokenIssue, res.Err)
	}
	return e.finishIssue(ctx, res), nil
}

func (e *Engine) finishIssue(ctx context.Context, res flows.IssueResult) *TokenPair {
	if res.RegisterErr != nil {
		e.metricInc(MetricSessionRegisterFailure)
		e.report(ctx, "session.register", res.RegisterErr)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditSessionRegisterError,
			UserID:    res.UserID,
			SessionID: res.SessionID,
			Error:     res.RegisterErr.Error(),
		})
	} else {
		e.metricInc(MetricSessionCreated)
	}

	return &TokenPair{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		SessionID:        res.SessionID,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
}

// Login verifies email and password and issues a pair. Unknown email and
// wrong password both return ErrInvalidCredentials; an inactive user whose
// password verifies gets ErrInactiveUser.
func (e *Engine) Login(ctx context.Context, email, secret string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, email, secret, e.flowDeps.Login)
	if res.Failure != flows.LoginFailureNone {
		err := e.loginError(ctx, res)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditLoginFailure,
			UserID:    res.User.ID,
			Error:     err.Error(),
		})
		return nil, err
	}

	pair := e.finishIssue(ctx, res.Issued)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditLoginSuccess,
		UserID:    res.User.ID,
		SessionID: pair.SessionID,
		Success:   true,
	})
	return pair, nil
}

func (e *Engine) loginError(ctx context.Context, res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureCredentials:
		return ErrInvalidCredentials
	case flows.LoginFailureInactive:
		e.metricInc(MetricLoginInactive)
		return ErrInactiveUser
	case flows.LoginFailureCorruptHash:
		e.report(ctx, "login.verify", res.Err)
		return fmt.Errorf("%w: user %s", ErrCorruptPasswordHash, res.User.ID)
	case flows.LoginFailureIssue:
		e.report(ctx, "login.issue", res.Err)
		return fmt.Errorf("%w: %v", ErrTokenIssue, res.Err)
	default:
		e.report(ctx, "login.lookup", res.Err)
		return fmt.Errorf("%w: %v", ErrUserLookup, res.Err)
	}
}

// Refresh redeems refreshToken exactly once and returns a new pair carrying
// the same user and roles. Of N concurrent calls with the same token at most
// one succeeds; the rest get ErrUnknownOrConsumedSession. A store failure is
// ErrStoreUnavailable and leaves the session untouched.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flowDeps.Refresh)
	if res.Failure != flows.RefreshFailureNone {
		err := e.refreshError(ctx, res)
		e.metricInc(MetricRefreshFailure)
		eventType := AuditRefreshRejected
		if res.Failure == flows.RefreshFailureReplay {
			eventType = AuditRefreshReplay
		}
		e.emitAudit(ctx, AuditEvent{
			EventType: eventType,
			UserID:    res.UserID,
			SessionID: res.SessionID,
			Error:     err.Error(),
		})
		return nil, err
	}

	pair := e.finishIssue(ctx, res.Issued)
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditRefreshSuccess,
		UserID:    res.UserID,
		SessionID: pair.SessionID,
		Success:   true,
		Metadata:  map[string]string{"previous_session_id": res.SessionID},
	})
	return pair, nil
}

func (e *Engine) refreshError(ctx context.Context, res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureDecode:
		return tokenError(res.Err)
	case flows.RefreshFailureUser:
		if errors.Is(res.Err, ErrInactiveUser) {
			return ErrInactiveUser
		}
		return fmt.Errorf("%w: %v", ErrUnknownOrConsumedSession, res.Err)
	case flows.RefreshFailureReplay:
		e.metricInc(MetricReplayDetected)
		return ErrUnknownOrConsumedSession
	case flows.RefreshFailureStore:
		if errors.Is(res.Err, session.ErrInvalidKey) {
			return fmt.Errorf("%w: %v", ErrUnknownOrConsumedSession, res.Err)
		}
		e.metricInc(MetricStoreUnavailable)
		e.report(ctx, "refresh.consume", res.Err)
		return res.Err
	case flows.RefreshFailureIssue:
		e.report(ctx, "refresh.issue", res.Err)
		return fmt.Errorf("%w: %v", ErrTokenIssue, res.Err)
	default:
		e.report(ctx, "refresh.user", res.Err)
		return fmt.Errorf("%w: %v", ErrUserLookup, res.Err)
	}
}

// Authenticate verifies accessToken and re-reads its owner, so a user
// deactivated after issue is rejected with ErrInactiveUser.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*UserContext, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}
	}()

	res := flows.RunAuthenticate(ctx, accessToken, e.flowDeps.Authenticate)
	switch res.Failure {
	case flows.AuthenticateFailureNone:
	case flows.AuthenticateFailureDecode:
		e.metricInc(MetricAuthenticateFailure)
		return nil, tokenError(res.Err)
	case flows.AuthenticateFailureUserNotFound:
		e.metricInc(MetricAuthenticateFailure)
		return nil, ErrUserNotFound
	case flows.AuthenticateFailureInactive:
		e.metricInc(MetricAuthenticateFailure)
		return nil, ErrInactiveUser
	default:
		e.metricInc(MetricAuthenticateFailure)
		e.report(ctx, "authenticate.lookup", res.Err)
		return nil, fmt.Errorf("%w: %v", ErrUserLookup, res.Err)
	}

	e.metricInc(MetricAuthenticateSuccess)
	return &UserContext{
		UserID:    res.User.ID,
		Email:     res.User.Email,
		Roles:     append([]string(nil), res.Claims.Roles...),
		Superuser: res.User.Superuser,
		IssuedAt:  res.Claims.IssuedTime(),
		ExpiresAt: res.Claims.ExpiresTime(),
	}, nil
}

// RequireRole returns nil when uc holds role or is a superuser.
func (e *Engine) RequireRole(uc *UserContext, role string) error {
	if uc != nil && (uc.Superuser || uc.HasRole(role)) {
		return nil
	}
	e.metricInc(MetricPermissionDenied)
	return fmt.Errorf("%w: role %q required", ErrPermissionDenied, role)
}

// RequirePermission returns nil when any of uc's roles grants perm in the
// current role registry, or uc is a superuser.
func (e *Engine) RequirePermission(uc *UserContext, perm string) error {
	if uc != nil {
		if uc.Superuser {
			return nil
		}
		if rm := e.Roles(); rm != nil && rm.HasPermission(uc.Roles, perm) {
			return nil
		}
	}
	e.metricInc(MetricPermissionDenied)
	return fmt.Errorf("%w: permission %q required", ErrPermissionDenied, perm)
}

// Permissions returns the sorted union of permissions granted by uc's roles.
func (e *Engine) Permissions(uc *UserContext) []string {
	rm := e.Roles()
	if uc == nil || rm == nil {
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, role := range uc.Roles {
		for _, p := range rm.Permissions(role) {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Logout revokes the session named by refreshToken. A session that is
// already gone is not an error. A token that fails to decode returns its
// token error so the caller can still clear cookies.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	res := flows.RunLogout(ctx, refreshToken, e.flowDeps.Logout)
	switch res.Failure {
	case flows.LogoutFailureNone:
	case flows.LogoutFailureDecode:
		return tokenError(res.Err)
	default:
		if errors.Is(res.Err, session.ErrInvalidKey) {
			return fmt.Errorf("%w: %v", ErrUnknownOrConsumedSession, res.Err)
		}
		e.metricInc(MetricStoreUnavailable)
		e.report(ctx, "logout.revoke", res.Err)
		return res.Err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditLogout,
		UserID:    res.UserID,
		SessionID: res.SessionID,
		Success:   true,
		Metadata:  map[string]string{"revoked": fmt.Sprint(res.Revoked)},
	})
	return nil
}

// LogoutAll revokes every session of userID and returns how many were live.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	n, err := flows.RunLogoutAll(ctx, userID, e.flowDeps.Logout)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			e.metricInc(MetricStoreUnavailable)
			e.report(ctx, "logout_all.revoke", err)
		}
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditLogoutAll,
		UserID:    userID,
		Success:   true,
		Metadata:  map[string]string{"revoked": fmt.Sprint(n)},
	})
	return n, nil
}

// RevokeSession revokes one session of userID. It reports whether the
// session was live.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	revoked, err := e.sessionStore.Revoke(ctx, userID, sessionID)
	if err != nil {
		return false, err
	}
	if revoked {
		e.metricInc(MetricLogout)
	}
	return revoked, nil
}

// ActiveSessions lists the live sessions of userID, oldest first.
func (e *Engine) ActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.sessionStore.ListSessions(ctx, userID)
}

// HashPassword derives a stored hash for registration or password change.
func (e *Engine) HashPassword(secret string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(secret)
}

// Roles returns the current role manager.
func (e *Engine) Roles() *permission.RoleManager {
	if e == nil {
		return nil
	}
	return e.roles.Load()
}

// SetRoles swaps in rm for subsequent permission checks. rm is frozen.
func (e *Engine) SetRoles(rm *permission.RoleManager) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if rm == nil {
		return errors.New("role manager required")
	}
	rm.Freeze()
	e.roles.Store(rm)
	return nil
}

// ReloadRoles rebuilds the role manager from definitions and swaps it in.
// The current manager stays in place when the definitions are invalid.
func (e *Engine) ReloadRoles(permissions []string, roles []permission.RoleDef) error {
	rm, err := permission.Load(permissions, roles)
	if err != nil {
		return err
	}
	return e.SetRoles(rm)
}

func (e *Engine) report(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	e.logger.ErrorContext(ctx, "authcore operation failed", "op", op, "error", err)
	if e.reporter != nil {
		e.reporter(ctx, op, err)
	}
}
