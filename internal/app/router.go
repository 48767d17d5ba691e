package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-fleet/meridian/internal/audit"
	"github.com/meridian-fleet/meridian/internal/auth"
	"github.com/meridian-fleet/meridian/internal/crew"
	"github.com/meridian-fleet/meridian/internal/observability"
	"github.com/meridian-fleet/meridian/internal/policy"
	"github.com/meridian-fleet/meridian/internal/roles"
	"github.com/meridian-fleet/meridian/internal/shared"
	"github.com/meridian-fleet/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler        *auth.Handler
	AuditHandler       *audit.Handler
	RolesHandler       *roles.Handler
	CrewHandler        *crew.Handler
	PermissionsHandler *policy.PermissionsHandler
	JobsHandler        *jobs.Handler
	PolicyMiddleware   policy.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(r chi.Router) {
		// Role administration is gated by the admin configure permission;
		// everything else the handlers decide per record.
		if params.RolesHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.PolicyMiddleware.RequireAction(policy.ModuleAdmin, policy.ActionConfigure))
				params.RolesHandler.MountRoutes(r)
			})
		}
		if params.CrewHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.PolicyMiddleware.RequireAction(policy.ModuleCrew, policy.ActionView))
				params.CrewHandler.MountRoutes(r)
			})
		}
		if params.AuditHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.PolicyMiddleware.RequireAction(policy.ModuleAdmin, policy.ActionView))
				r.Route("/audit", params.AuditHandler.MountRoutes)
			})
		}
		if params.JobsHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.PolicyMiddleware.RequireAction(policy.ModuleAdmin, policy.ActionView))
				r.Route("/jobs", params.JobsHandler.MountRoutes)
			})
		}
		if params.PermissionsHandler != nil {
			r.Route("/me/permissions", params.PermissionsHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
