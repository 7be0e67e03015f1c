package engine

import (
	"sort"
	"strings"
)

// IsPrimeSet is the default qualifying predicate: the prime-set item family
// is identified by its URL slug. Kept pluggable on Params because the rule
// is a coarse heuristic.
func IsPrimeSet(set string) bool {
	return strings.Contains(set, "prime_set")
}

// setKey identifies a set on one platform.
type setKey struct {
	Set      string
	Platform string
}

// ResolveComponents normalizes the raw set→part membership table and
// derives per-set structure. Duplicate (set, platform, part) observations
// collapse to the maximum observed quantity: collection runs occasionally
// see partial component lists, and the largest quantity is the complete one.
// Rows missing a set or part identifier are dropped; quantities below 1
// are read as 1.
//
// The function is idempotent and insensitive to input order: both return
// slices are sorted by their natural keys.
func ResolveComponents(links []ComponentLink, p Params) ([]ComponentLink, []SetStructure) {
	p = p.normalized()

	type linkKey struct {
		Set      string
		Platform string
		Part     string
	}
	maxQty := make(map[linkKey]int)
	for _, l := range links {
		set, part := normalizeID(l.Set), normalizeID(l.Part)
		if set == "" || part == "" {
			continue
		}
		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		k := linkKey{Set: set, Platform: normalizePlatform(l.Platform), Part: part}
		if qty > maxQty[k] {
			maxQty[k] = qty
		}
	}

	normalized := make([]ComponentLink, 0, len(maxQty))
	for k, qty := range maxQty {
		normalized = append(normalized, ComponentLink{
			Set:      k.Set,
			Part:     k.Part,
			Platform: k.Platform,
			Quantity: qty,
		})
	}
	sort.Slice(normalized, func(i, j int) bool {
		a, b := normalized[i], normalized[j]
		if a.Set != b.Set {
			return a.Set < b.Set
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.Part < b.Part
	})

	agg := make(map[setKey]*SetStructure)
	for _, l := range normalized {
		k := setKey{Set: l.Set, Platform: l.Platform}
		s := agg[k]
		if s == nil {
			s = &SetStructure{Set: l.Set, Platform: l.Platform}
			agg[k] = s
		}
		s.NumParts++
		s.TotalQty += l.Quantity
	}

	structs := make([]SetStructure, 0, len(agg))
	for _, s := range agg {
		// A set assembled from several copies of a single part is still
		// assembled, hence the OR.
		s.Craftable = s.NumParts >= p.MinDistinctParts || s.TotalQty >= p.MinTotalQty
		s.Qualifying = p.Qualifying(s.Set)
		structs = append(structs, *s)
	}
	sort.Slice(structs, func(i, j int) bool {
		a, b := structs[i], structs[j]
		if a.Set != b.Set {
			return a.Set < b.Set
		}
		return a.Platform < b.Platform
	})
	return normalized, structs
}

// eligibleSets returns the craftable-and-qualifying sets keyed for joins.
func eligibleSets(structs []SetStructure) map[setKey]SetStructure {
	out := make(map[setKey]SetStructure)
	for _, s := range structs {
		if s.Craftable && s.Qualifying {
			out[setKey{Set: s.Set, Platform: s.Platform}] = s
		}
	}
	return out
}
