package domain

import dErrors "turf/pkg/domain-errors"

// TerritoryStatus is the resolved availability of a territory.
// The catalog also stores a copy of this value as a listing hint; the hint is
// never authoritative — the resolver recomputes status from the ledger and
// lease table on every correctness-sensitive read.
type TerritoryStatus string

const (
	StatusAvailable TerritoryStatus = "available"
	StatusHeld      TerritoryStatus = "held"
	StatusTaken     TerritoryStatus = "taken"
)

var validStatuses = map[TerritoryStatus]bool{
	StatusAvailable: true,
	StatusHeld:      true,
	StatusTaken:     true,
}

// ParseTerritoryStatus constructs a TerritoryStatus from external input.
func ParseTerritoryStatus(s string) (TerritoryStatus, error) {
	st := TerritoryStatus(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid territory status")
	}
	return st, nil
}

func (s TerritoryStatus) IsValid() bool  { return validStatuses[s] }
func (s TerritoryStatus) String() string { return string(s) }

// OwnershipStatus is the lifecycle state of a ledger record. Records are
// never deleted; they move active -> canceled exactly once.
type OwnershipStatus string

const (
	OwnershipActive   OwnershipStatus = "active"
	OwnershipCanceled OwnershipStatus = "canceled"
)

func (s OwnershipStatus) String() string { return string(s) }
