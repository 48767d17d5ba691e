package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-fleet/meridian/internal/policy"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveJob("role_assignment_expiry", "ok")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	metrics.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "meridian_jobs_total") {
		t.Fatalf("expected body to contain meridian_jobs_total, got: %s", body)
	}
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	metrics := NewMetrics()

	router := chi.NewRouter()
	router.Use(metrics.Middleware)
	router.Get("/api/crew/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/crew/m-1", nil)
	router.ServeHTTP(rr, req)

	rr = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	if !strings.Contains(body, `meridian_http_requests_total{code="200",route="/api/crew/{id}"} 1`) {
		t.Fatalf("expected request counter for route pattern, got: %s", body)
	}
}

func TestObserveDecisionLabelsOutcome(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveDecision(policy.ModuleCrew, policy.ActionView, true)
	metrics.ObserveDecision(policy.ModuleCrew, policy.ActionDelete, false)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	if !strings.Contains(body, `meridian_policy_decisions_total{action="view",module="crew",outcome="allow"} 1`) {
		t.Fatalf("expected allow counter, got: %s", body)
	}
	if !strings.Contains(body, `meridian_policy_decisions_total{action="delete",module="crew",outcome="deny"} 1`) {
		t.Fatalf("expected deny counter, got: %s", body)
	}
}

func TestRoutePatternFallsBackToUnknown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req = req.WithContext(context.Background())
	if got := routePattern(req); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
