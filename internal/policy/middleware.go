package policy

import (
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/meridian-fleet/meridian/internal/shared"
)

// Middleware wires policy authorization helpers for HTTP handlers. It
// gates module access only; instance-level scope checks run inside the
// handlers with a full PermissionContext.
type Middleware struct {
	Registry *CacheRegistry
	Logger   *slog.Logger
}

// RequireAction ensures the current principal may perform the action on
// the module. Unauthenticated requests and principals whose policy cache
// cannot be made ready are denied.
func (m Middleware) RequireAction(module Module, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, companyID, ok := m.currentPrincipal(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			cache := m.Registry.For(userID)
			if !cache.IsInitialized() {
				if err := cache.Load(r.Context(), userID, companyID); err != nil {
					if m.Logger != nil {
						m.Logger.Error("policy cache load", slog.Any("error", err))
					}
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			if !cache.CheckPermission(module, action, nil) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentPrincipal(r *http.Request) (string, int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return "", 0, false
	}
	userID := strings.TrimSpace(sess.User())
	if userID == "" {
		return "", 0, false
	}
	companyID, err := strconv.ParseInt(sess.Get("company_id"), 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("policy parse company id", slog.String("value", sess.Get("company_id")))
		}
		return "", 0, false
	}
	return userID, companyID, true
}
