package crew

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-fleet/meridian/internal/platform/httpx"
	"github.com/meridian-fleet/meridian/internal/policy"
	"github.com/meridian-fleet/meridian/internal/shared"
)

// Handler manages crew endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	registry *policy.CacheRegistry
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, registry *policy.CacheRegistry) *Handler {
	return &Handler{logger: logger, service: service, registry: registry}
}

// MountRoutes registers crew routes. The module-level view gate runs in
// the policy middleware; instance scope and redaction run in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/crew", h.listMembers)
	r.Get("/crew/{id}", h.getMember)
	r.Put("/crew/{id}/profile", h.updateOwnProfile)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	policies, ok := h.policies(w, r)
	if !ok {
		return
	}
	filter := ListFilter{
		VesselID:   r.URL.Query().Get("vessel_id"),
		Department: r.URL.Query().Get("department"),
		RankLike:   r.URL.Query().Get("rank"),
	}
	members, err := h.service.ListMembers(r.Context(), policies, filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"crew": members})
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	policies, ok := h.policies(w, r)
	if !ok {
		return
	}
	member, err := h.service.GetMember(r.Context(), policies, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

func (h *Handler) updateOwnProfile(w http.ResponseWriter, r *http.Request) {
	policies, ok := h.policies(w, r)
	if !ok {
		return
	}
	var input OwnProfileInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	member, err := h.service.UpdateOwnProfile(r.Context(), policies, chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

// policies resolves the caller's session policy cache, loading it on
// first use.
func (h *Handler) policies(w http.ResponseWriter, r *http.Request) (*policy.SessionPolicyCache, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || strings.TrimSpace(sess.User()) == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session required")
		return nil, false
	}
	companyID, err := strconv.ParseInt(sess.Get("company_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session has no company")
		return nil, false
	}
	cache := h.registry.For(sess.User())
	if !cache.IsInitialized() {
		if err := cache.Load(r.Context(), sess.User(), companyID); err != nil {
			h.logger.Error("policy cache load", slog.Any("error", err))
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "permissions unavailable")
			return nil, false
		}
	}
	return cache, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if !isClientError(err) {
		h.logger.Error("crew request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	for _, sentinel := range []error{shared.ErrNotFound, shared.ErrForbidden, shared.ErrValidation} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
