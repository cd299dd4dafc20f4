package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"turf/internal/claims/service"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/httputil"
	"turf/pkg/requestcontext"
)

// Service defines the claim commands the API exposes.
type Service interface {
	Begin(ctx context.Context, territoryID id.TerritoryID, partyID id.PartyID, email string) (*service.BeginResult, error)
	Cancel(ctx context.Context, ref id.SubscriptionRef, requester id.PartyID) error
}

// Handler wires the claim command endpoints to the claims service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a claims handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts claim endpoints on the router. All routes require an
// authenticated party.
func (h *Handler) Register(r chi.Router) {
	r.Post("/claims", h.HandleBeginClaim)
	r.Delete("/ownerships/{subscriptionRef}", h.HandleCancelOwnership)
}

// BeginClaimRequest starts a claim on one territory.
type BeginClaimRequest struct {
	TerritoryID string `json:"territory_id"`
	Email       string `json:"email"`
}

// BeginClaimResponse carries the hold and the checkout to finish paying.
type BeginClaimResponse struct {
	TerritoryID    string    `json:"territory_id"`
	LeaseExpiresAt time.Time `json:"lease_expires_at"`
	CheckoutURL    string    `json:"checkout_url"`
	PriceTier      string    `json:"price_tier"`
}

// HandleBeginClaim handles POST /claims.
func (h *Handler) HandleBeginClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partyID := requestcontext.PartyID(ctx)

	req, ok := httputil.Decode[BeginClaimRequest](w, r)
	if !ok {
		return
	}
	territoryID, err := id.ParseTerritoryID(req.TerritoryID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid territory id"))
		return
	}

	result, err := h.service.Begin(ctx, territoryID, partyID, req.Email)
	if err != nil {
		h.logger.InfoContext(ctx, "claim rejected",
			"territory_id", territoryID.String(),
			"party_id", partyID.String(),
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, BeginClaimResponse{
		TerritoryID:    territoryID.String(),
		LeaseExpiresAt: result.Lease.ExpiresAt,
		CheckoutURL:    result.CheckoutURL,
		PriceTier:      result.PriceTier.String(),
	})
}

// HandleCancelOwnership handles DELETE /ownerships/{subscriptionRef}. The
// response is 202: cancellation completes when the provider's deletion
// webhook is reconciled, not here.
func (h *Handler) HandleCancelOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partyID := requestcontext.PartyID(ctx)
	ref := id.SubscriptionRef(chi.URLParam(r, "subscriptionRef"))

	if err := h.service.Cancel(ctx, ref, partyID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
