// Package httptransport assembles the HTTP surface: public queries, the
// authenticated command API, the provider webhook, and operational
// endpoints. Route wiring only; behavior lives in the domain handlers.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	claimshandler "turf/internal/claims/handler"
	ownershiphandler "turf/internal/ownership/handler"
	"turf/internal/platform/middleware"
	pricinghandler "turf/internal/pricing/handler"
	reconcilerhandler "turf/internal/reconciler/handler"
	"turf/pkg/platform/httputil"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps collects everything the router mounts.
type Deps struct {
	Ownership  *ownershiphandler.Handler
	Pricing    *pricinghandler.Handler
	Claims     *claimshandler.Handler
	Reconciler *reconcilerhandler.Handler

	AuthSigningKey string
	Logger         *slog.Logger

	// Health checks; nil entries are skipped (memory-backed dev mode).
	Postgres HealthChecker
	Redis    HealthChecker
}

// NewRouter wires all endpoints. Queries and the webhook are public; the
// command API and eligibility listing require a bearer token.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestTime)

	r.Get("/healthz", handleHealth(d))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		d.Ownership.Register(r)
		d.Reconciler.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireParty(d.AuthSigningKey, d.Logger))
		d.Claims.Register(r)
		d.Pricing.Register(r)
	})

	return r
}

func handleHealth(d Deps) http.HandlerFunc {
	checks := map[string]HealthChecker{}
	if d.Postgres != nil {
		checks["postgres"] = d.Postgres
	}
	if d.Redis != nil {
		checks["redis"] = d.Redis
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, c := range checks {
			if err := c.Health(ctx); err != nil {
				d.Logger.ErrorContext(ctx, "health check failed", "dependency", name, "error", err)
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = "unreachable"
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
