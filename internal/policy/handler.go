package policy

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-fleet/meridian/internal/shared"
)

// PermissionsHandler exposes the signed-in principal's effective
// permissions so clients can build navigation without probing endpoints.
type PermissionsHandler struct {
	Registry *CacheRegistry
	Logger   *slog.Logger
}

// MountRoutes registers the permissions routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.effectivePermissions)
}

type permissionsResponse struct {
	State       string              `json:"state"`
	PrimaryRole string              `json:"primary_role,omitempty"`
	Roles       []string            `json:"roles"`
	Permissions map[Module][]Action `json:"permissions"`
}

func (h *PermissionsHandler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || strings.TrimSpace(sess.User()) == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	companyID, err := strconv.ParseInt(sess.Get("company_id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	cache := h.Registry.For(sess.User())
	if !cache.IsInitialized() {
		if err := cache.Load(r.Context(), sess.User(), companyID); err != nil && h.Logger != nil {
			h.Logger.Warn("permissions load", slog.Any("error", err))
		}
	}

	resp := permissionsResponse{
		State:       cache.State().String(),
		Roles:       []string{},
		Permissions: cache.EffectivePermissions(),
	}
	if snap := cache.Snapshot(); snap != nil && cache.IsInitialized() {
		for _, role := range snap.Roles {
			resp.Roles = append(resp.Roles, string(role.Code))
		}
	}
	if primary, ok := cache.HighestRole(); ok {
		resp.PrimaryRole = string(primary.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
