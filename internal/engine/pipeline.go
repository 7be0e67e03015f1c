package engine

import "sort"

// Run executes the full analytics pass: raw order-book observations and
// raw component links in, the three derived tables and the reconciliation
// report out.
//
// The inputs are treated as read-only snapshots; every grouping step is
// keyed, every windowed step sorts first, so the result is a pure function
// of the input rows regardless of their order. Empty inputs are a valid
// "no data yet" state and produce an empty, well-typed Result.
func Run(orders []OrderSnapshot, links []ComponentLink, p Params) *Result {
	p = p.normalized()

	res := &Result{Series: make(map[string][]SetDailyRecord)}
	if len(orders) == 0 || len(links) == 0 {
		return res
	}

	daily := AggregateDaily(orders)
	comps, structs := ResolveComponents(links, p)

	records := BuildSetDaily(daily, comps, structs, p)
	ApplyKPI(records)
	NormalizeKPI(records, p)
	trailing := TrailingKPI(records, p)

	// Latest row per (set, platform); records are sorted by date within a
	// set, so the last row wins.
	latestIdx := make(map[setKey]int)
	for i, r := range records {
		k := setKey{Set: r.Set, Platform: r.Platform}
		if j, ok := latestIdx[k]; !ok || r.Date > records[j].Date {
			latestIdx[k] = i
		}
	}

	latestBySet := make(map[setKey]string, len(latestIdx))
	modelCost := make(map[setKey]NullFloat, len(latestIdx))
	for k, i := range latestIdx {
		latestBySet[k] = records[i].Date
		modelCost[k] = records[i].PartsCost
		res.Index = append(res.Index, SetIndexRecord{
			SetDailyRecord: records[i],
			KPI30Avg:       trailing[k],
		})
	}
	sort.Slice(res.Index, func(i, j int) bool {
		a, b := res.Index[i], res.Index[j]
		if a.Set != b.Set {
			return a.Set < b.Set
		}
		return a.Platform < b.Platform
	})

	for _, r := range records {
		res.Series[r.Set] = append(res.Series[r.Set], r)
	}

	res.PartsLatest = BuildPartsLatest(comps, daily, latestBySet)
	res.Discrepancies = Reconcile(modelCost, res.PartsLatest, p)
	return res
}
