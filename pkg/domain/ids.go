package domain

import (
	"github.com/google/uuid"
)

// Typed IDs keep territory, party, and lease identifiers from being mixed up
// at call sites. Construct via Parse* at trust boundaries; direct casting
// bypasses validation.
type (
	// TerritoryID identifies a territory or metro-group in the catalog.
	TerritoryID uuid.UUID

	// PartyID identifies an operator (buyer) holding or pursuing a claim.
	PartyID uuid.UUID

	// LeaseID identifies a short-lived checkout hold.
	LeaseID uuid.UUID

	// OwnershipID identifies a ledger record.
	OwnershipID uuid.UUID
)

func (id TerritoryID) String() string { return uuid.UUID(id).String() }
func (id PartyID) String() string     { return uuid.UUID(id).String() }
func (id LeaseID) String() string     { return uuid.UUID(id).String() }
func (id OwnershipID) String() string { return uuid.UUID(id).String() }

func (id TerritoryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PartyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// NewTerritoryID returns a fresh random territory id.
func NewTerritoryID() TerritoryID { return TerritoryID(uuid.New()) }

// NewPartyID returns a fresh random party id.
func NewPartyID() PartyID { return PartyID(uuid.New()) }

// NewLeaseID returns a fresh random lease id.
func NewLeaseID() LeaseID { return LeaseID(uuid.New()) }

// NewOwnershipID returns a fresh random ledger record id.
func NewOwnershipID() OwnershipID { return OwnershipID(uuid.New()) }

// ParseTerritoryID validates external input as a territory id.
func ParseTerritoryID(s string) (TerritoryID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TerritoryID{}, err
	}
	return TerritoryID(u), nil
}

// ParsePartyID validates external input as a party id.
func ParsePartyID(s string) (PartyID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PartyID{}, err
	}
	return PartyID(u), nil
}

// SubscriptionRef is the billing provider's stable subscription identifier.
// It is the idempotency key for every reconciliation lookup, so it gets its
// own type even though it is provider-opaque text.
type SubscriptionRef string

func (r SubscriptionRef) String() string { return string(r) }
func (r SubscriptionRef) IsZero() bool   { return r == "" }
