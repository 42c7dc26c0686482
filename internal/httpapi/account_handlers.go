package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/store/pg"
	"github.com/MrEthical07/authcore/middleware"
)

const maxHistoryLimit = 200

type accountResponse struct {
	User        userResponse `json:"user"`
	Roles       []string     `json:"roles"`
	Permissions []string     `json:"permissions"`
}

type historyEntry struct {
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address"`
	Location  string    `json:"location,omitempty"`
	UserAgent string    `json:"user_agent"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresIn int64     `json:"expires_in_seconds"`
}

func currentUser(w http.ResponseWriter, r *http.Request) (*authcore.UserContext, bool) {
	uc, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	}
	return uc, ok
}

func (a *api) account(w http.ResponseWriter, r *http.Request) {
	uc, ok := currentUser(w, r)
	if !ok {
		return
	}
	user, err := a.accounts.FindUserByID(r.Context(), uc.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	roles := uc.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, accountResponse{
		User:        newUserResponse(user),
		Roles:       roles,
		Permissions: a.engine.Permissions(uc),
	})
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	uc, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit := pg.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := a.accounts.LoginHistory(r.Context(), uc.UserID, limit)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "login history read failed", "user_id", uc.UserID, "error", err)
		writeErrorCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			Timestamp: e.Timestamp,
			IPAddress: e.IPAddress,
			Location:  e.Location,
			UserAgent: e.UserAgent,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (a *api) sessions(w http.ResponseWriter, r *http.Request) {
	uc, ok := currentUser(w, r)
	if !ok {
		return
	}
	infos, err := a.engine.ActiveSessions(r.Context(), uc.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]sessionResponse, 0, len(infos))
	for _, s := range infos {
		out = append(out, sessionResponse{
			SessionID: s.SessionID,
			CreatedAt: s.CreatedAt,
			ExpiresIn: int64(s.ExpiresIn / time.Second),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (a *api) logoutAll(w http.ResponseWriter, r *http.Request) {
	uc, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := a.engine.LogoutAll(middleware.RequestContext(r), uc.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.ClearTokenCookies(w, a.cookies)
	writeJSON(w, http.StatusOK, map[string]any{"revoked": n})
}
