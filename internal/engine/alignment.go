package engine

import (
	"math"
	"sort"
)

// partKey identifies a part's daily series on one platform.
type partKey struct {
	Part     string
	Platform string
}

// BuildPartsLatest assembles the point-in-time parts breakdown: for each
// set with a latest observed date, every part is priced as of that date,
// the part's daily summary with the greatest date at or before it. Dates
// rarely align exactly across independently polled items, so this is a
// backward nearest-match lookup, never an equi-join, and never the part's
// own latest row (which could postdate the set's snapshot).
//
// Unit cost follows the same buy-then-sell fallback as the cost model,
// with the chosen side recorded on the row.
func BuildPartsLatest(comps []ComponentLink, daily []DailySummary, latestBySet map[setKey]string) []PartLatestRecord {
	series := make(map[partKey][]DailySummary)
	for _, d := range daily {
		k := partKey{Part: d.Item, Platform: d.Platform}
		series[k] = append(series[k], d)
	}
	for _, rows := range series {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	}

	var out []PartLatestRecord
	for _, c := range comps {
		asOf, ok := latestBySet[setKey{Set: c.Set, Platform: c.Platform}]
		if !ok {
			continue
		}

		rec := PartLatestRecord{
			Set:      c.Set,
			Platform: c.Platform,
			Part:     c.Part,
			Quantity: c.Quantity,
		}
		if d, found := asOfLookup(series[partKey{Part: c.Part, Platform: c.Platform}], asOf); found {
			rec.UnitCost, rec.PriceSource = effectivePrice(d)
			rec.SellDepth = d.SellDepthMed
			rec.AsOfDate = d.Date
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Set != b.Set {
			return a.Set < b.Set
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.Part < b.Part
	})
	return out
}

// asOfLookup returns the row with the greatest date <= asOf from a series
// sorted ascending by date. ISO dates compare lexicographically.
func asOfLookup(sorted []DailySummary, asOf string) (DailySummary, bool) {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].Date > asOf })
	if i == 0 {
		return DailySummary{}, false
	}
	return sorted[i-1], true
}

// Reconcile cross-checks the cost model's latest parts cost for each set
// against the total recomputed from the as-of breakdown. The two estimates
// come from independent join strategies over the same daily summaries and
// should agree in the non-degenerate case; a relative difference beyond
// the tolerance flags the set for investigation.
//
// When exactly one path produced a cost the set is flagged with the diffs
// left missing. One estimator seeing data the other cannot is itself a
// disagreement. When neither produced a cost there is nothing to compare.
func Reconcile(modelCost map[setKey]NullFloat, partsLatest []PartLatestRecord, p Params) []Discrepancy {
	p = p.normalized()

	snapCost := make(map[setKey]NullFloat)
	for _, r := range partsLatest {
		k := setKey{Set: r.Set, Platform: r.Platform}
		cur, seen := snapCost[k]
		if !seen {
			cur = Some(0)
		}
		if !r.UnitCost.Valid {
			snapCost[k] = None()
			continue
		}
		if cur.Valid {
			snapCost[k] = Some(cur.Float64 + float64(r.Quantity)*r.UnitCost.Float64)
		}
	}

	keys := make([]setKey, 0, len(snapCost))
	for k := range snapCost {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Set != keys[j].Set {
			return keys[i].Set < keys[j].Set
		}
		return keys[i].Platform < keys[j].Platform
	})

	var out []Discrepancy
	for _, k := range keys {
		model, snap := modelCost[k], snapCost[k]
		d := Discrepancy{
			Set:          k.Set,
			Platform:     k.Platform,
			ModelCost:    model,
			SnapshotCost: snap,
		}
		switch {
		case model.Valid && snap.Valid:
			abs := math.Abs(model.Float64 - snap.Float64)
			d.AbsDiff = Some(abs)
			switch {
			case model.Float64 != 0:
				rel := abs / math.Abs(model.Float64)
				d.RelDiff = Some(rel)
				d.Flagged = rel > p.DiscrepancyTolerance
			case abs == 0:
				d.RelDiff = Some(0)
			default:
				// Model says free, snapshot disagrees: relative diff is
				// undefined but the mismatch is real.
				d.Flagged = true
			}
		case model.Valid != snap.Valid:
			d.Flagged = true
		}
		out = append(out, d)
	}
	return out
}
