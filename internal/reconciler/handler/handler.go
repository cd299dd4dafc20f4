package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"turf/internal/billing"
	"turf/internal/reconciler/events"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/httputil"
)

// maxBodyBytes bounds webhook payloads; provider events are small.
const maxBodyBytes = 1 << 20

// Reconciler defines the reconciliation operations the HTTP layer invokes.
type Reconciler interface {
	Apply(ctx context.Context, ev events.Event) error
	LinkPendingPurchases(ctx context.Context, email string, partyID id.PartyID) (int, error)
}

// Handler receives billing webhooks and the account-linked trigger.
type Handler struct {
	reconciler    Reconciler
	webhookSecret string
	logger        *slog.Logger
}

// New constructs a reconciler handler.
func New(reconciler Reconciler, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{reconciler: reconciler, webhookSecret: webhookSecret, logger: logger}
}

// Register mounts the webhook and linking endpoints. The webhook is
// authenticated by its signature, not by a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/billing", h.HandleBillingWebhook)
	r.Post("/accounts/linked", h.HandleAccountLinked)
}

// HandleBillingWebhook handles POST /webhooks/billing. 2xx tells the
// provider to stop redelivering; only transient apply failures return 5xx.
func (h *Handler) HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable request body"))
		return
	}

	if err := billing.VerifySignature(r.Header.Get(billing.SignatureHeader), body, h.webhookSecret); err != nil {
		h.logger.WarnContext(ctx, "rejected webhook signature", "error", err)
		httputil.WriteError(w, err)
		return
	}

	ev, err := events.Parse(body)
	if err != nil {
		if errors.Is(err, events.ErrUnknownType) {
			// Acknowledged, not acted on. Failing would only cause the
			// provider to redeliver an event we will never handle.
			h.logger.InfoContext(ctx, "ignoring unknown event type", "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.WarnContext(ctx, "rejected malformed event", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed event"))
		return
	}

	if err := h.reconciler.Apply(ctx, ev); err != nil {
		h.logger.ErrorContext(ctx, "event application failed",
			"event_id", ev.EventID(),
			"subscription_ref", ev.Ref().String(),
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AccountLinkedRequest announces a newly registered account.
type AccountLinkedRequest struct {
	Email   string `json:"email"`
	PartyID string `json:"party_id"`
}

// AccountLinkedResponse reports how many guest purchases were attached.
type AccountLinkedResponse struct {
	Linked int `json:"linked"`
}

// HandleAccountLinked handles POST /accounts/linked: the account system's
// registration hook, which attaches any guest purchases made under the new
// account's email.
func (h *Handler) HandleAccountLinked(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[AccountLinkedRequest](w, r)
	if !ok {
		return
	}
	if req.Email == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "email is required"))
		return
	}
	partyID, err := id.ParsePartyID(req.PartyID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid party id"))
		return
	}

	linked, err := h.reconciler.LinkPendingPurchases(ctx, req.Email, partyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "guest purchase linking failed",
			"party_id", partyID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AccountLinkedResponse{Linked: linked})
}
