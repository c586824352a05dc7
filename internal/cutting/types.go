package cutting

import "math"

// ValidLength reports whether v is usable as a detail length or a stock
// capacity: a finite positive number.
func ValidLength(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Detail is a requested piece: a name, a length, and how many are still to be cut.
// Values are never mutated in place; registry operations return new slices.
type Detail struct {
	Name   string  `json:"name" yaml:"name"`
	Length float64 `json:"length" yaml:"length"`
	Amount int     `json:"amount" yaml:"amount"`
}

// StockUnit is one tube consumed by the plan. Every placed piece has Amount 1.
type StockUnit struct {
	Capacity          float64  `json:"capacity"`
	RemainingCapacity float64  `json:"remainingCapacity"`
	PlacedPieces      []Detail `json:"placedPieces"`
}

// UsedLength returns the total length of the pieces placed on the unit.
func (u StockUnit) UsedLength() float64 {
	var sum float64
	for _, p := range u.PlacedPieces {
		sum += p.Length
	}
	return sum
}

// PatternGroup collects stock units cut with an identical pattern.
type PatternGroup struct {
	Label      string      `json:"label"`
	Units      []StockUnit `json:"units"`
	TotalWaste float64     `json:"totalWaste"`
	UnitCount  int         `json:"unitCount"`
}

// CuttingPlan is the result of a single optimization run.
type CuttingPlan struct {
	Capacity        float64        `json:"capacity"`
	Groups          []PatternGroup `json:"groups"`
	LeftoverDetails []Detail       `json:"leftoverDetails"`
	TotalWaste      float64        `json:"totalWaste"`
	TotalUnitsUsed  int            `json:"totalUnitsUsed"`
	Complete        bool           `json:"complete"`
}

// Units flattens the groups back into a unit list, group by group.
func (p CuttingPlan) Units() []StockUnit {
	units := make([]StockUnit, 0, p.TotalUnitsUsed)
	for _, g := range p.Groups {
		units = append(units, g.Units...)
	}
	return units
}

// Efficiency returns the used share of all consumed stock, in [0, 1].
// A plan that consumed no stock has zero efficiency.
func (p CuttingPlan) Efficiency() float64 {
	if p.TotalUnitsUsed == 0 || !ValidLength(p.Capacity) {
		return 0
	}
	return 1 - p.TotalWaste/(float64(p.TotalUnitsUsed)*p.Capacity)
}
