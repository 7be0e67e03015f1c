package engine

import (
	"math"
	"sort"
)

// partDayKey addresses one part's daily summary.
type partDayKey struct {
	Item     string
	Platform string
	Date     string
}

// effectivePrice applies the acquisition-cost fallback: the buy-side median
// when present and positive, otherwise the sell-side median. The model
// estimates what filling buy orders for the part would cost; when no
// buy-side data exists for a date, the best available sell-side signal
// beats dropping the date.
func effectivePrice(d DailySummary) (NullFloat, string) {
	if d.BuyMed.Valid && d.BuyMed.Float64 > 0 {
		return d.BuyMed, PriceSourceBuy
	}
	if d.SellMed.Valid {
		return d.SellMed, PriceSourceSell
	}
	return None(), ""
}

// BuildSetDaily runs the cost model: for each craftable qualifying set and
// each date the set itself was observed, the total acquisition cost of its
// parts, the liquidity bottleneck, and the derived margin/ROI/opportunity
// metrics.
//
// A part with no price at all on a date poisons that set/date: the parts
// cost stays missing rather than summing a subset and understating the
// cost. Depth is the opposite: a missing sell depth reads as 0, the
// conservative assumption that an unseen side is illiquid.
func BuildSetDaily(daily []DailySummary, comps []ComponentLink, structs []SetStructure, p Params) []SetDailyRecord {
	p = p.normalized()
	eligible := eligibleSets(structs)
	if len(eligible) == 0 {
		return nil
	}

	partDay := make(map[partDayKey]DailySummary, len(daily))
	for _, d := range daily {
		partDay[partDayKey{Item: d.Item, Platform: d.Platform, Date: d.Date}] = d
	}

	partsBySet := make(map[setKey][]ComponentLink)
	for _, c := range comps {
		k := setKey{Set: c.Set, Platform: c.Platform}
		if _, ok := eligible[k]; ok {
			partsBySet[k] = append(partsBySet[k], c)
		}
	}

	var out []SetDailyRecord
	for _, d := range daily {
		k := setKey{Set: d.Item, Platform: d.Platform}
		parts, ok := partsBySet[k]
		if !ok {
			continue
		}

		rec := SetDailyRecord{
			Set:          d.Item,
			Platform:     d.Platform,
			Date:         d.Date,
			BuyMed:       d.BuyMed,
			SellMed:      d.SellMed,
			BuyDepthMed:  d.BuyDepthMed,
			SellDepthMed: d.SellDepthMed,
		}

		cost := Some(0)
		bottleneck := math.Inf(1)
		for _, part := range parts {
			pd, found := partDay[partDayKey{Item: part.Part, Platform: part.Platform, Date: d.Date}]

			price, _ := effectivePrice(pd)
			if !found || !price.Valid {
				cost = None()
			} else if cost.Valid {
				cost = Some(cost.Float64 + float64(part.Quantity)*price.Float64)
			}

			depth := math.Floor(pd.SellDepthMed.OrZero() / float64(part.Quantity))
			if depth < bottleneck {
				bottleneck = depth
			}
		}
		if math.IsInf(bottleneck, 1) {
			bottleneck = 0
		}

		rec.PartsCost = cost
		rec.BottleneckDepth = bottleneck
		rec.Margin = d.SellMed.Sub(cost)
		rec.ROIPct = roiPct(rec.Margin, cost)
		rec.OpportunityScore = opportunityScore(rec.Margin, d.BuyDepthMed, bottleneck)
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
		return a.Date < b.Date
	})
	return out
}

// roiPct is 100·margin/cost for a positive cost, otherwise missing;
// a zero or unknown cost has no meaningful return, not an infinite one.
func roiPct(margin, cost NullFloat) NullFloat {
	if !margin.Valid || !cost.Valid || cost.Float64 <= 0 {
		return None()
	}
	return Some(100 * margin.Float64 / cost.Float64)
}

// opportunityScore is the legacy liquidity-damped margin ranking:
// margin × log1p(sqrt(setBuyDepth × bottleneck)). Zero liquidity on either
// side drives the score toward zero regardless of margin size.
func opportunityScore(margin, setBuyDepth NullFloat, bottleneck float64) NullFloat {
	if !margin.Valid {
		return None()
	}
	vol := math.Sqrt(math.Max(0, setBuyDepth.OrZero()) * math.Max(0, bottleneck))
	return Some(margin.Float64 * math.Log1p(vol))
}
