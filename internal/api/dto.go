package api

import (
	"time"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
	"github.com/eugenenazirov/tube-cutter/internal/storage"
)

type capacityRequest struct {
	Capacity float64 `json:"capacity"`
}

type capacityResponse struct {
	Capacity  float64   `json:"capacity"`
	UpdatedAt time.Time `json:"updatedAt"`
	Message   string    `json:"message,omitempty"`
}

type addDetailRequest struct {
	Name     string  `json:"name"`
	Length   float64 `json:"length"`
	Quantity int     `json:"quantity"`
}

type detailsResponse struct {
	Details []storage.Row `json:"details"`
}

type optimizeRequest struct {
	Details  []cutting.Detail `json:"details"`
	Capacity float64          `json:"capacity"`
}

type pieceResponse struct {
	Name   string  `json:"name"`
	Length float64 `json:"length"`
}

type groupResponse struct {
	Label        string          `json:"label"`
	UnitCount    int             `json:"unitCount"`
	Pieces       []pieceResponse `json:"pieces"`
	WastePerUnit float64         `json:"wastePerUnit"`
	TotalWaste   float64         `json:"totalWaste"`
}

type planResponse struct {
	Capacity          float64          `json:"capacity"`
	TubesNeeded       int              `json:"tubesNeeded"`
	TotalWaste        float64          `json:"totalWaste"`
	EfficiencyPercent float64          `json:"efficiencyPercent"`
	Complete          bool             `json:"complete"`
	Groups            []groupResponse  `json:"groups"`
	LeftoverDetails   []cutting.Detail `json:"leftoverDetails"`
	CalculationTimeMs int64            `json:"calculationTimeMs"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type unplaceableResponse struct {
	errorResponse
	Unplaceable []cutting.UnplaceableDetail `json:"unplaceable"`
	Plan        planResponse                `json:"plan"`
}

func newPlanResponse(plan cutting.CuttingPlan, elapsed time.Duration) planResponse {
	resp := planResponse{
		Capacity:          plan.Capacity,
		TubesNeeded:       plan.TotalUnitsUsed,
		TotalWaste:        plan.TotalWaste,
		EfficiencyPercent: plan.Efficiency() * 100,
		Complete:          plan.Complete,
		Groups:            make([]groupResponse, 0, len(plan.Groups)),
		LeftoverDetails:   plan.LeftoverDetails,
		CalculationTimeMs: elapsed.Milliseconds(),
	}
	for _, g := range plan.Groups {
		rep := g.Units[0]
		pieces := make([]pieceResponse, 0, len(rep.PlacedPieces))
		for _, p := range rep.PlacedPieces {
			pieces = append(pieces, pieceResponse{Name: p.Name, Length: p.Length})
		}
		resp.Groups = append(resp.Groups, groupResponse{
			Label:        g.Label,
			UnitCount:    g.UnitCount,
			Pieces:       pieces,
			WastePerUnit: rep.RemainingCapacity,
			TotalWaste:   g.TotalWaste,
		})
	}
	return resp
}
