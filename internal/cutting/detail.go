package cutting

import (
	"cmp"
	"slices"
)

// SortByLengthDescending returns a copy of details ordered longest first.
// Equal lengths keep their input order.
func SortByLengthDescending(details []Detail) []Detail {
	sorted := slices.Clone(details)
	slices.SortStableFunc(sorted, func(a, b Detail) int {
		return cmp.Compare(b.Length, a.Length)
	})
	return sorted
}

// DecrementAmount returns a copy of details where the first detail called name
// has one less to cut. Exhausted details (amount <= 0) are dropped from the
// result. An unknown name decrements nothing.
func DecrementAmount(details []Detail, name string) []Detail {
	out := make([]Detail, 0, len(details))
	found := false
	for _, d := range details {
		if !found && d.Name == name {
			found = true
			d.Amount--
		}
		if d.Amount <= 0 {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ApplyUsage decrements remaining once for every piece in used, in order.
func ApplyUsage(remaining, used []Detail) []Detail {
	updated := slices.Clone(remaining)
	for _, u := range used {
		updated = DecrementAmount(updated, u.Name)
	}
	return updated
}

func selectable(d Detail) bool {
	return d.Amount > 0 && ValidLength(d.Length)
}
