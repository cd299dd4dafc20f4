package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	catalogmodels "turf/internal/catalog/models"
	"turf/internal/ownership/resolver"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/httputil"
)

// Resolver defines the ownership resolution operations the query API needs.
type Resolver interface {
	ResolveAll(ctx context.Context) ([]resolver.ResolvedTerritory, error)
	ResolveOwner(ctx context.Context, territoryID id.TerritoryID) (*id.PartyID, error)
}

// Catalog maps zips to territories for the owner lookup.
type Catalog interface {
	FindByZip(ctx context.Context, zip string) (*catalogmodels.Territory, error)
}

// Handler wires the read-only ownership endpoints to the resolver.
type Handler struct {
	resolver Resolver
	catalog  Catalog
	logger   *slog.Logger
}

// New constructs an ownership query handler.
func New(resolver Resolver, catalog Catalog, logger *slog.Logger) *Handler {
	return &Handler{resolver: resolver, catalog: catalog, logger: logger}
}

// Register mounts the query endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/territories", h.HandleListTerritories)
	r.Get("/territories/zip/{zip}/owner", h.HandleOwnerByZip)
}

// HandleListTerritories handles GET /territories: every territory with its
// resolved effective status, computed in one pass.
func (h *Handler) HandleListTerritories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resolved, err := h.resolver.ResolveAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "territory listing failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromResolved(resolved))
}

// HandleOwnerByZip handles GET /territories/zip/{zip}/owner.
func (h *Handler) HandleOwnerByZip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	zip := chi.URLParam(r, "zip")

	t, err := h.catalog.FindByZip(ctx, zip)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	owner, err := h.resolver.ResolveOwner(ctx, t.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "owner resolution failed",
			"territory_id", t.ID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	if owner == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "territory has no owner"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{
		TerritoryID: t.ID.String(),
		Zip:         zip,
		OwnerID:     owner.String(),
	})
}
