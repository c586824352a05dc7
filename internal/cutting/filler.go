package cutting

import "slices"

// FillUnit fills one stock unit of the given capacity from available.
//
// Each step picks the detail that leaves the smallest non-negative gap. Ties go
// to the detail listed first. Filling stops when nothing fits. available is
// not modified.
func FillUnit(available []Detail, capacity float64) StockUnit {
	remaining := capacity
	working := slices.Clone(available)
	var placed []Detail

	for len(working) > 0 {
		best := bestFit(working, remaining)
		if best < 0 {
			break
		}
		d := working[best]
		placed = append(placed, Detail{Name: d.Name, Length: d.Length, Amount: 1})
		remaining -= d.Length

		working[best].Amount--
		if working[best].Amount <= 0 {
			working = append(working[:best], working[best+1:]...)
		}
	}

	return StockUnit{
		Capacity:          capacity,
		RemainingCapacity: remaining,
		PlacedPieces:      placed,
	}
}

// bestFit returns the index of the detail leaving the smallest gap in
// remaining, or -1 if none fits.
func bestFit(details []Detail, remaining float64) int {
	best := -1
	var smallestGap float64
	for i, d := range details {
		if !selectable(d) || d.Length > remaining {
			continue
		}
		gap := remaining - d.Length
		if best < 0 || gap < smallestGap {
			best = i
			smallestGap = gap
		}
	}
	return best
}
