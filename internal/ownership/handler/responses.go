package handler

import (
	"turf/internal/ownership/resolver"
)

// TerritoryResponse is one row of the resolved listing.
type TerritoryResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Region       string   `json:"region"`
	MetroGroupID string   `json:"metro_group_id,omitempty"`
	IsMetroGroup bool     `json:"is_metro_group"`
	Zips         []string `json:"zips,omitempty"`
	AdjacentIDs  []string `json:"adjacent_ids,omitempty"`
	Status       string   `json:"status"`
	OwnerID      string   `json:"owner_id,omitempty"`
}

// OwnerResponse answers the zip owner lookup.
type OwnerResponse struct {
	TerritoryID string `json:"territory_id"`
	Zip         string `json:"zip"`
	OwnerID     string `json:"owner_id"`
}

func fromResolved(resolved []resolver.ResolvedTerritory) []TerritoryResponse {
	out := make([]TerritoryResponse, 0, len(resolved))
	for _, rt := range resolved {
		resp := TerritoryResponse{
			ID:           rt.Territory.ID.String(),
			Name:         rt.Territory.Name,
			Region:       rt.Territory.Region,
			IsMetroGroup: rt.Territory.IsMetroGroup,
			Zips:         rt.Territory.Zips,
			Status:       rt.Status.String(),
		}
		if rt.Territory.MetroGroupID != nil {
			resp.MetroGroupID = rt.Territory.MetroGroupID.String()
		}
		for _, adj := range rt.Territory.AdjacentIDs {
			resp.AdjacentIDs = append(resp.AdjacentIDs, adj.String())
		}
		if rt.OwnerID != nil {
			resp.OwnerID = rt.OwnerID.String()
		}
		out = append(out, resp)
	}
	return out
}
