package cutting

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const signatureSeparator = "|"

// Signature returns the canonical key of the unit's cutting pattern. Units
// with the same pieces (by name and length) share a signature whatever order
// the pieces were placed in.
func Signature(unit StockUnit) string {
	pieces := slices.Clone(unit.PlacedPieces)
	slices.SortFunc(pieces, func(a, b Detail) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Length, b.Length)
	})

	parts := make([]string, 0, len(pieces))
	for _, p := range pieces {
		parts = append(parts, strconv.Quote(p.Name)+":"+formatLength(p.Length))
	}
	return strings.Join(parts, signatureSeparator)
}

// GroupSimilarUnits groups units that share a signature. Groups are returned in
// the order their first unit appears, labelled "Type N (names)" where names are
// the distinct detail names of that first unit in placement order.
func GroupSimilarUnits(units []StockUnit) []PatternGroup {
	index := make(map[string]int)
	var groups []PatternGroup

	for _, unit := range units {
		sig := Signature(unit)
		i, ok := index[sig]
		if !ok {
			i = len(groups)
			index[sig] = i
			groups = append(groups, PatternGroup{})
		}
		g := &groups[i]
		g.Units = append(g.Units, unit)
		g.TotalWaste += unit.RemainingCapacity
		g.UnitCount++
	}

	for i := range groups {
		groups[i].Label = fmt.Sprintf("Type %d (%s)", i+1, strings.Join(distinctNames(groups[i].Units[0]), ", "))
	}
	if groups == nil {
		return []PatternGroup{}
	}
	return groups
}

func distinctNames(unit StockUnit) []string {
	seen := make(map[string]struct{}, len(unit.PlacedPieces))
	names := make([]string, 0, len(unit.PlacedPieces))
	for _, p := range unit.PlacedPieces {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	return names
}
