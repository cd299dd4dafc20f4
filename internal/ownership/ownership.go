// Package ownership holds the ledger of durable territory claims and the
// resolver that computes effective ownership, including metro-group
// inheritance. All ledger writes go through the event reconciler; other
// components read only.
package ownership

import (
	"context"
	"time"

	"turf/internal/ownership/models"
	id "turf/pkg/domain"
)

// Store is the ledger persistence contract.
//
// Create must be backed by a store-level uniqueness guarantee on (territory,
// active) and on subscription ref: concurrent inserts for the same territory
// must yield exactly one success (sentinel.ErrConflict for the rest).
type Store interface {
	Create(ctx context.Context, r *models.Record) error

	// FindBySubscriptionRef returns the record for the given ref regardless
	// of status. Reconciliation keys every lookup on the ref.
	FindBySubscriptionRef(ctx context.Context, ref id.SubscriptionRef) (*models.Record, error)

	// ActiveByTerritory returns the territory's direct active record, if any.
	ActiveByTerritory(ctx context.Context, territoryID id.TerritoryID) (*models.Record, error)

	// ActiveByParty returns every active record a party holds.
	ActiveByParty(ctx context.Context, partyID id.PartyID) ([]*models.Record, error)

	// ListActive returns all active records; used by bulk resolution.
	ListActive(ctx context.Context) ([]*models.Record, error)

	// MarkCanceled transitions an active record to canceled with the given
	// end time. Returns sentinel.ErrNotFound when no record carries the ref
	// and sentinel.ErrInvalidState when it is already canceled.
	MarkCanceled(ctx context.Context, ref id.SubscriptionRef, endedAt time.Time) (*models.Record, error)

	// EnsureActive re-activates a record reported active by the provider.
	// No-op when already active.
	EnsureActive(ctx context.Context, ref id.SubscriptionRef) (*models.Record, error)

	// UpdatePriceTier rewrites the tier tag after a pricing revocation.
	UpdatePriceTier(ctx context.Context, ref id.SubscriptionRef, tier id.PriceTier) error
}
