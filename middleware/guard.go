package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

type userContextKey struct{}

// UserFromContext returns the identity attached by Guard.
func UserFromContext(ctx context.Context) (*authcore.UserContext, bool) {
	uc, ok := ctx.Value(userContextKey{}).(*authcore.UserContext)
	return uc, ok && uc != nil
}

// WithUser attaches uc to ctx the way Guard does.
func WithUser(ctx context.Context, uc *authcore.UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, uc)
}

// Guard authenticates the access token from the Authorization bearer
// header, falling back to the access_token cookie. Unauthorized requests get
// 401; lookup failures get 503.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := AccessToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := RequestContext(r)
			uc, err := engine.Authenticate(ctx, token)
			if err != nil {
				status := StatusFor(err)
				http.Error(w, http.StatusText(status), status)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, uc)))
		})
	}
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authcore.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, authcore.ErrStoreUnavailable), errors.Is(err, authcore.ErrUserLookup):
		return http.StatusServiceUnavailable
	case authcore.IsUnauthorized(err):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// AccessToken extracts the access token from the request.
func AccessToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// RequestContext returns r's context carrying the client IP and user agent
// for login history and audit events.
func RequestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = authcore.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = authcore.WithUserAgent(ctx, ua)
	}
	return ctx
}

// clientIP uses RemoteAddr. Put a trusted proxy middleware (chi's RealIP)
// in front when running behind a load balancer.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
