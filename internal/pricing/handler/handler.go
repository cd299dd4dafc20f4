package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	catalogmodels "turf/internal/catalog/models"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/httputil"
	"turf/pkg/requestcontext"
)

// Service defines the pricing operations the API exposes.
type Service interface {
	EligibleCandidates(ctx context.Context, partyID id.PartyID) ([]*catalogmodels.Territory, error)
}

// Handler wires the discount eligibility endpoint to the pricing engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a pricing handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts pricing endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/parties/{partyID}/eligible-territories", h.HandleEligibleTerritories)
}

// EligibleTerritoryResponse is one discount-eligible candidate.
type EligibleTerritoryResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// HandleEligibleTerritories handles GET /parties/{partyID}/eligible-territories.
// A party may only list its own candidates.
func (h *Handler) HandleEligibleTerritories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	partyID, err := id.ParsePartyID(chi.URLParam(r, "partyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid party id"))
		return
	}
	if requestcontext.PartyID(ctx) != partyID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "party not found"))
		return
	}

	candidates, err := h.service.EligibleCandidates(ctx, partyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "eligible territory listing failed",
			"party_id", partyID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}

	out := make([]EligibleTerritoryResponse, 0, len(candidates))
	for _, t := range candidates {
		out = append(out, EligibleTerritoryResponse{
			ID:     t.ID.String(),
			Name:   t.Name,
			Region: t.Region,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
