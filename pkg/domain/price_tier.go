package domain

import dErrors "turf/pkg/domain-errors"

// PriceTier tags an ownership record with the price it is billed at.
// Invariant: adjacent-discount is only granted while the territory borders
// another territory the same party actively owns; the pricing engine reverts
// the tier when that stops being true.
type PriceTier string

const (
	TierStandard         PriceTier = "standard"
	TierAdjacentDiscount PriceTier = "adjacent-discount"
)

var validTiers = map[PriceTier]bool{
	TierStandard:         true,
	TierAdjacentDiscount: true,
}

// ParsePriceTier constructs a PriceTier from external input.
func ParsePriceTier(s string) (PriceTier, error) {
	t := PriceTier(s)
	if !validTiers[t] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid price tier")
	}
	return t, nil
}

func (t PriceTier) IsValid() bool  { return validTiers[t] }
func (t PriceTier) String() string { return string(t) }
