package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

// RequireRole rejects requests whose identity lacks role with 403. It must
// run behind Guard; a request without an identity gets 401.
func RequireRole(engine *authcore.Engine, role string) func(http.Handler) http.Handler {
	return requireCheck(func(uc *authcore.UserContext) error {
		return engine.RequireRole(uc, role)
	})
}

// RequirePermission rejects requests whose roles do not grant perm.
func RequirePermission(engine *authcore.Engine, perm string) func(http.Handler) http.Handler {
	return requireCheck(func(uc *authcore.UserContext) error {
		return engine.RequirePermission(uc, perm)
	})
}

func requireCheck(check func(*authcore.UserContext) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uc, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err := check(uc); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
