package privacy

import (
	"time"
)

// SweepResult describes what a retention pass did.
type SweepResult struct {
	// Kept holds the surviving items in input order, anonymized where required.
	Kept []Item

	// Purged holds the IDs of removed items.
	Purged []string

	// Anonymized holds the items whose value was replaced in this pass.
	Anonymized []Item
}

// Sweep applies retention policies to items at now.
//
// An item expires when now - CollectedAt > MaxAge for its category. Expired
// items are removed (Purge) or have their value replaced by anon
// (Anonymize). Anonymized items are never anonymized again, so a second
// pass with the same now changes nothing. items is not modified.
func Sweep(items []Item, policies map[Category]RetentionPolicy, now time.Time, anon *Anonymizer) SweepResult {
	res := SweepResult{Kept: make([]Item, 0, len(items))}

	for _, item := range items {
		policy, ok := policies[item.Category]
		if !ok || now.Sub(item.CollectedAt) <= policy.MaxAge {
			res.Kept = append(res.Kept, item)
			continue
		}
		if item.Anonymized && policy.Action == Anonymize {
			res.Kept = append(res.Kept, item)
			continue
		}

		switch policy.Action {
		case Purge:
			res.Purged = append(res.Purged, item.ID)
		case Anonymize:
			item.Value = anon.Anonymize(item.Category, item.Value)
			item.Anonymized = true
			res.Kept = append(res.Kept, item)
			res.Anonymized = append(res.Anonymized, item)
		default:
			res.Kept = append(res.Kept, item)
		}
	}
	return res
}

// EnforceRetention returns the items that remain after applying policies at now.
func EnforceRetention(items []Item, policies map[Category]RetentionPolicy, now time.Time, anon *Anonymizer) []Item {
	return Sweep(items, policies, now, anon).Kept
}

// PolicyMap indexes policies by category. Later entries win.
func PolicyMap(policies []RetentionPolicy) map[Category]RetentionPolicy {
	m := make(map[Category]RetentionPolicy, len(policies))
	for _, p := range policies {
		m[p.Category] = p
	}
	return m
}

// SortedPolicies returns policies ordered by category sensitivity.
func SortedPolicies(m map[Category]RetentionPolicy) []RetentionPolicy {
	out := make([]RetentionPolicy, 0, len(m))
	for _, c := range Categories() {
		if p, ok := m[c]; ok {
			out = append(out, p)
		}
	}
	return out
}
