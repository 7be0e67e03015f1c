package engine

import (
	"sort"
	"strings"
)

const dateLayout = "2006-01-02"

// dailyKey groups order snapshots into one calendar day per item.
type dailyKey struct {
	Item     string
	Platform string
	Date     string
}

// AggregateDaily collapses raw order-book observations into one robust
// summary per (item, platform, UTC date). Each numeric field is the median
// of that field's non-missing observations in the group, computed
// independently of the others. A field with no valid observations stays
// missing. Rows with a zero timestamp are dropped (unparseable upstream).
//
// Output is sorted by (item, platform, date), so the result is identical
// under any permutation of the input rows.
func AggregateDaily(snaps []OrderSnapshot) []DailySummary {
	type group struct {
		buys, sells   []float64
		buyDs, sellDs []float64
	}

	groups := make(map[dailyKey]*group)
	for _, s := range snaps {
		if s.TS.IsZero() || s.Item == "" {
			continue
		}
		k := dailyKey{
			Item:     normalizeID(s.Item),
			Platform: normalizePlatform(s.Platform),
			Date:     s.TS.UTC().Format(dateLayout),
		}
		g := groups[k]
		if g == nil {
			g = &group{}
			groups[k] = g
		}
		if s.TopBuyAvg.Valid {
			g.buys = append(g.buys, s.TopBuyAvg.Float64)
		}
		if s.TopSellAvg.Valid {
			g.sells = append(g.sells, s.TopSellAvg.Float64)
		}
		g.buyDs = append(g.buyDs, float64(s.BuyCount))
		g.sellDs = append(g.sellDs, float64(s.SellCount))
	}

	out := make([]DailySummary, 0, len(groups))
	for k, g := range groups {
		out = append(out, DailySummary{
			Item:         k.Item,
			Platform:     k.Platform,
			Date:         k.Date,
			BuyMed:       median(g.buys),
			SellMed:      median(g.sells),
			BuyDepthMed:  median(g.buyDs),
			SellDepthMed: median(g.sellDs),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Item != b.Item {
			return a.Item < b.Item
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.Date < b.Date
	})
	return out
}

// median returns the middle value of vs (mean of the two middles for even
// counts), or missing for an empty slice. The input is not modified.
func median(vs []float64) NullFloat {
	if len(vs) == 0 {
		return None()
	}
	sorted := make([]float64, len(vs))
	copy(sorted, vs)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return Some(sorted[mid])
	}
	return Some((sorted[mid-1] + sorted[mid]) / 2)
}

// normalizeID lowercases an item identifier the way the collector writes it.
func normalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizePlatform defaults an absent platform to "pc".
func normalizePlatform(s string) string {
	s = normalizeID(s)
	if s == "" {
		return "pc"
	}
	return s
}
