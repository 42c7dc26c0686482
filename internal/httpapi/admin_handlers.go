package httpapi

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore/middleware"
	"github.com/go-chi/chi/v5"
)

type roleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type roleResponse struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

func (a *api) listRoles(w http.ResponseWriter, r *http.Request) {
	perms, roles, err := a.accounts.ListRoles(r.Context())
	if err != nil {
		a.logger.ErrorContext(r.Context(), "list roles failed", "error", err)
		writeErrorCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		granted := role.Permissions
		if granted == nil {
			granted = []string{}
		}
		out = append(out, roleResponse{Name: role.Name, Permissions: granted})
	}
	if perms == nil {
		perms = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": out, "permissions": perms})
}

// createRole persists the role and then reloads the engine's role set from
// the store, so the new role is usable without a restart.
func (a *api) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}

	ctx := r.Context()
	if err := a.accounts.CreateRole(ctx, req.Name, req.Permissions); err != nil {
		writeError(w, err)
		return
	}
	if err := a.reloadRoles(r); err != nil {
		writeErrorCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", "role saved but not loaded")
		return
	}

	granted := a.engine.Roles().Permissions(req.Name)
	writeJSON(w, http.StatusCreated, roleResponse{Name: req.Name, Permissions: granted})
}

func (a *api) reloadRoles(r *http.Request) error {
	perms, roles, err := a.accounts.ListRoles(r.Context())
	if err == nil {
		err = a.engine.ReloadRoles(perms, roles)
	}
	if err != nil {
		a.logger.ErrorContext(r.Context(), "role reload failed", "error", err)
	}
	return err
}

// assignRole takes effect at the user's next login; live tokens keep the
// roles they were issued with.
func (a *api) assignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Role) == "" {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "role is required")
		return
	}
	if err := a.accounts.AssignRole(r.Context(), chi.URLParam(r, "id"), req.Role); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deactivate marks the user inactive and revokes every session they hold.
func (a *api) deactivate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := middleware.RequestContext(r)
	if err := a.accounts.SetActive(ctx, userID, false); err != nil {
		writeError(w, err)
		return
	}
	n, err := a.engine.LogoutAll(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": n})
}
