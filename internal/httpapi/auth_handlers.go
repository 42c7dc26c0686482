package httpapi

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/store/pg"
	"github.com/MrEthical07/authcore/internal/throttle"
	"github.com/MrEthical07/authcore/middleware"
)

const minPasswordLength = 8

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type userResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Active       bool      `json:"active"`
	Superuser    bool      `json:"superuser"`
	Verified     bool      `json:"verified"`
	RegisteredAt time.Time `json:"registered_at"`
}

func newTokenResponse(pair *authcore.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func newUserResponse(u authcore.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Email:        u.Email,
		Active:       u.Active,
		Superuser:    u.Superuser,
		Verified:     u.Verified,
		RegisteredAt: u.RegisteredAt,
	}
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "password is too short")
		return
	}

	hash, err := a.engine.HashPassword(req.Password)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "password rejected")
		return
	}

	ctx := r.Context()
	user, err := a.accounts.CreateUser(ctx, pg.NewUser{Email: email, PasswordHash: hash})
	if err != nil {
		if !errors.Is(err, authcore.ErrDuplicateName) {
			a.logger.ErrorContext(ctx, "register failed", "error", err)
		}
		writeError(w, err)
		return
	}
	if a.defaultRole != "" {
		if err := a.accounts.AssignRole(ctx, user.ID, a.defaultRole); err != nil {
			a.logger.ErrorContext(ctx, "default role assignment failed", "user_id", user.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "email and password are required")
		return
	}

	ctx := middleware.RequestContext(r)
	if a.locationHdr != "" {
		if loc := strings.TrimSpace(r.Header.Get(a.locationHdr)); loc != "" {
			ctx = authcore.WithLocation(ctx, loc)
		}
	}
	ip := remoteIP(r)
	if a.throttle != nil {
		if err := a.throttle.Check(ctx, req.Email, ip); err != nil {
			if errors.Is(err, throttle.ErrThrottled) {
				writeError(w, err)
				return
			}
			// throttle backend down: do not lock everyone out
			a.logger.WarnContext(ctx, "login throttle unavailable", "error", err)
		}
	}

	pair, err := a.engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		if a.throttle != nil && authcore.IsUnauthorized(err) {
			if ferr := a.throttle.Fail(ctx, req.Email, ip); ferr != nil {
				a.logger.WarnContext(ctx, "login throttle unavailable", "error", ferr)
			}
		}
		if authcore.IsUnauthorized(err) {
			a.logger.InfoContext(ctx, "login rejected", "error", err)
			writeInvalidCredentials(w)
			return
		}
		writeError(w, err)
		return
	}
	if a.throttle != nil {
		if err := a.throttle.Reset(ctx, req.Email); err != nil {
			a.logger.WarnContext(ctx, "login throttle reset failed", "error", err)
		}
	}

	middleware.SetTokenCookies(w, pair, a.cookies)
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

// refreshTokenFrom prefers an explicit body token, then the refresh cookie.
func refreshTokenFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
		var req refreshRequest
		if !decodeJSON(w, r, &req) {
			return "", false
		}
		if token := strings.TrimSpace(req.RefreshToken); token != "" {
			return token, true
		}
	}
	if token, ok := middleware.RefreshToken(r); ok {
		return token, true
	}
	writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "refresh_token is required")
	return "", false
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFrom(w, r)
	if !ok {
		return
	}

	ctx := middleware.RequestContext(r)
	pair, err := a.engine.Refresh(ctx, token)
	if err != nil {
		if authcore.IsUnauthorized(err) {
			a.logger.InfoContext(ctx, "refresh rejected", "error", err)
			middleware.ClearTokenCookies(w, a.cookies)
			writeInvalidToken(w)
			return
		}
		writeError(w, err)
		return
	}

	middleware.SetTokenCookies(w, pair, a.cookies)
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

// logout always clears the cookies. A token that no longer decodes still
// counts as logged out; only store failures are reported.
func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearTokenCookies(w, a.cookies)

	token, ok := refreshTokenFrom(w, r)
	if !ok {
		return
	}

	err := a.engine.Logout(middleware.RequestContext(r), token)
	if err != nil && !authcore.IsUnauthorized(err) {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
