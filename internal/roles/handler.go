package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-fleet/meridian/internal/platform/httpx"
	"github.com/meridian-fleet/meridian/internal/policy"
	"github.com/meridian-fleet/meridian/internal/shared"
)

// Handler manages the role administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers role administration routes. Callers gate the
// group with the admin/configure permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Post("/roles", h.createRole)
	r.Delete("/roles/{code}", h.deleteRole)

	r.Get("/assignments", h.listAssignments)
	r.Post("/assignments", h.createAssignment)
	r.Post("/assignments/{id}/revoke", h.revokeAssignment)

	r.Get("/redactions", h.listRedactions)
	r.Post("/redactions", h.createRedaction)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.principalCompany(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListCustomRoles(r.Context(), companyID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": list})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	actorID, companyID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var input CustomRoleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	created, err := h.service.CreateCustomRole(r.Context(), actorID, companyID, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	actorID, companyID, ok := h.principal(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")
	if err := h.service.DeleteCustomRole(r.Context(), actorID, companyID, code); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "user_id query parameter is required")
		return
	}
	list, err := h.service.ListAssignments(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": list})
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	actorID, companyID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var input AssignmentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	created, err := h.service.AssignRole(r.Context(), actorID, companyID, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) revokeAssignment(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := h.principal(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}
	revoked, err := h.service.RevokeAssignment(r.Context(), actorID, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, revoked)
}

func (h *Handler) listRedactions(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.principalCompany(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListRedactions(r.Context(), companyID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"redactions": list})
}

func (h *Handler) createRedaction(w http.ResponseWriter, r *http.Request) {
	actorID, companyID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var input RedactionInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	created, err := h.service.CreateRedaction(r.Context(), actorID, companyID, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session required")
		return "", 0, false
	}
	companyID, err := strconv.ParseInt(sess.Get("company_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session has no company")
		return "", 0, false
	}
	return sess.User(), companyID, true
}

func (h *Handler) principalCompany(w http.ResponseWriter, r *http.Request) (int64, bool) {
	_, companyID, ok := h.principal(w, r)
	return companyID, ok
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrDuplicateRoleCode):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrSystemRoleImmutable):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrRoleInUse):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnknownRole):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, policy.ErrRedactionProtectedRole):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("roles request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
