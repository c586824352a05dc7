package cutting

import "fmt"

const (
	// DefaultCapacity is the usable length of one standard stock tube.
	DefaultCapacity = 5500.0
	// MaxPieces caps the total amount of one run. Planning time and memory grow
	// with the number of pieces, not the number of details.
	MaxPieces = 100_000
)

// Planner describes the behaviour required from a cutting planner.
type Planner interface {
	Optimize(details []Detail) (CuttingPlan, error)
}

type greedyPlanner struct {
	capacity float64
}

// New creates a Planner that cuts tubes of the given capacity using the
// best-fit-decreasing heuristic.
func New(capacity float64) Planner {
	return &greedyPlanner{capacity: capacity}
}

// Optimize places every detail on as few stock units as the heuristic finds.
//
// When some details can never fit on a fresh unit, the returned plan still
// covers everything else, lists the rest in LeftoverDetails, and the error is
// an *UnplaceableDetailError.
func (p *greedyPlanner) Optimize(details []Detail) (CuttingPlan, error) {
	if !ValidLength(p.capacity) {
		return CuttingPlan{}, ErrInvalidCapacity
	}
	if err := checkUniqueNames(details); err != nil {
		return CuttingPlan{}, err
	}
	if err := checkPieceCount(details); err != nil {
		return CuttingPlan{}, err
	}

	demand := make([]Detail, 0, len(details))
	for _, d := range details {
		if d.Amount > 0 {
			demand = append(demand, d)
		}
	}
	demand = SortByLengthDescending(demand)

	var units []StockUnit
	for len(demand) > 0 {
		unit := FillUnit(demand, p.capacity)
		if len(unit.PlacedPieces) == 0 {
			break
		}
		units = append(units, unit)
		demand = ApplyUsage(demand, unit.PlacedPieces)
	}

	groups := GroupSimilarUnits(units)
	plan := CuttingPlan{
		Capacity:        p.capacity,
		Groups:          groups,
		LeftoverDetails: demand,
		TotalUnitsUsed:  len(units),
		Complete:        len(demand) == 0,
	}
	for _, g := range groups {
		plan.TotalWaste += g.TotalWaste
	}
	if plan.LeftoverDetails == nil {
		plan.LeftoverDetails = []Detail{}
	}

	if !plan.Complete {
		unplaceable := make([]UnplaceableDetail, 0, len(demand))
		for _, d := range demand {
			unplaceable = append(unplaceable, UnplaceableDetail{Name: d.Name, Length: d.Length})
		}
		return plan, &UnplaceableDetailError{Capacity: p.capacity, Details: unplaceable}
	}
	return plan, nil
}

func checkUniqueNames(details []Detail) error {
	seen := make(map[string]struct{}, len(details))
	for _, d := range details {
		if _, ok := seen[d.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateDetail, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}

func checkPieceCount(details []Detail) error {
	total := 0
	for _, d := range details {
		if d.Amount <= 0 {
			continue
		}
		if d.Amount > MaxPieces-total {
			return fmt.Errorf("%w: limit is %d", ErrTooManyPieces, MaxPieces)
		}
		total += d.Amount
	}
	return nil
}
