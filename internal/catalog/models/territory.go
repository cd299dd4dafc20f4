package models

import (
	"time"

	id "turf/pkg/domain"
)

// Territory is the unit of exclusive geographic sales right. A metro-group
// is itself a territory row whose purchase transitively claims every member.
//
// StatusHint is a denormalized listing hint only. The resolver recomputes the
// authoritative status from the ledger and lease table; nothing
// correctness-sensitive may read the hint.
type Territory struct {
	ID     id.TerritoryID
	Name   string
	Region string

	// MetroGroupID is set when this territory belongs to a purchasable
	// bundle. Nil for standalone territories and for metro-groups.
	MetroGroupID *id.TerritoryID
	IsMetroGroup bool

	// Zips is the ZIP-equivalent membership set. Empty for metro-groups.
	Zips []string

	// AdjacentIDs is the border graph used for the adjacency discount.
	AdjacentIDs []id.TerritoryID

	StatusHint id.TerritoryStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasParent reports whether the territory belongs to a metro-group.
func (t *Territory) HasParent() bool {
	return t.MetroGroupID != nil && !t.MetroGroupID.IsNil()
}

// IsAdjacentTo reports whether other borders this territory.
func (t *Territory) IsAdjacentTo(other id.TerritoryID) bool {
	for _, a := range t.AdjacentIDs {
		if a == other {
			return true
		}
	}
	return false
}

// CoversZip reports whether the given ZIP-equivalent key belongs to this
// territory's membership set.
func (t *Territory) CoversZip(zip string) bool {
	for _, z := range t.Zips {
		if z == zip {
			return true
		}
	}
	return false
}
