package engine

import (
	"math"
	"sort"
)

// ApplyKPI fills the daily volume cap and daily trading potential on each
// record.
//
// The cap is the true number of assemble-and-sell cycles possible that
// day: min(set buy-side depth, parts bottleneck), floored at zero. The
// potential is max(0, margin) × cap: a loss-making set is not "less
// potential", it is no potential, and a missing margin likewise
// contributes nothing.
func ApplyKPI(records []SetDailyRecord) {
	for i := range records {
		r := &records[i]
		assemblyCap := math.Max(0, r.BottleneckDepth)
		buyerCap := math.Max(0, r.BuyDepthMed.OrZero())
		r.DailyVolumeCap = math.Min(assemblyCap, buyerCap)
		r.KPIDailyPotential = math.Max(0, r.Margin.OrZero()) * r.DailyVolumeCap
	}
}

// TrailingKPI returns the mean of each set's last N daily potential values
// in chronological order. The window counts samples, not calendar days:
// sparse history is averaged as-is, never backfilled with zeros.
// BuildSetDaily emits records already sorted by (set, platform, date), but
// the sort here is explicit so the result never depends on caller order.
func TrailingKPI(records []SetDailyRecord, p Params) map[setKey]NullFloat {
	p = p.normalized()

	bySet := make(map[setKey][]SetDailyRecord)
	for _, r := range records {
		k := setKey{Set: r.Set, Platform: r.Platform}
		bySet[k] = append(bySet[k], r)
	}

	out := make(map[setKey]NullFloat, len(bySet))
	for k, rows := range bySet {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
		if len(rows) > p.RollingWindow {
			rows = rows[len(rows)-p.RollingWindow:]
		}
		var sum float64
		for _, r := range rows {
			sum += r.KPIDailyPotential
		}
		out[k] = Some(sum / float64(len(rows)))
	}
	return out
}

// NormalizeKPI rescales daily potential into a stable 0–100 index
// calibrated from the current cross-section: one value per set (its latest
// date). The lower percentile maps to 0 and the upper percentile to
// PercentileStretch of full scale, then values are clipped to [0,1] and
// scaled to [0,100].
//
// The calibration floats with the population, so the 0–100 index is
// relative to this run, not an absolute scale.
func NormalizeKPI(records []SetDailyRecord, p Params) {
	p = p.normalized()
	if len(records) == 0 {
		return
	}

	latest := make(map[setKey]int)
	for i, r := range records {
		k := setKey{Set: r.Set, Platform: r.Platform}
		if j, ok := latest[k]; !ok || r.Date > records[j].Date {
			latest[k] = i
		}
	}

	cross := make([]float64, 0, len(latest))
	for _, i := range latest {
		cross = append(cross, records[i].KPIDailyPotential)
	}

	lo, hi, stretched := calibrationRange(cross, p)
	for i := range records {
		r := &records[i]
		var v float64
		if stretched {
			v = (r.KPIDailyPotential - lo) / (hi - lo) * p.PercentileStretch
		} else {
			v = r.KPIDailyPotential / hi
		}
		v = clamp01(v)
		r.KPI01 = Some(v)
		r.KPI0100 = Some(v * 100)
	}
}

// calibrationRange picks the normalization bounds from the cross-section.
// With enough sets it is the configured percentile band (stretched=true);
// with a thin population, or a degenerate band, it falls back to the fixed
// range [0, max(1, observed max)].
func calibrationRange(cross []float64, p Params) (lo, hi float64, stretched bool) {
	fallback := func() (float64, float64, bool) {
		maxV := 0.0
		for _, v := range cross {
			if v > maxV {
				maxV = v
			}
		}
		return 0, math.Max(1, maxV), false
	}

	if len(cross) < p.MinCalibrationSets {
		return fallback()
	}

	sorted := make([]float64, len(cross))
	copy(sorted, cross)
	sort.Float64s(sorted)

	lo = percentile(sorted, p.LowerPercentile)
	hi = percentile(sorted, p.UpperPercentile)
	if hi <= lo {
		return fallback()
	}
	return lo, hi, true
}

// percentile returns the p-th percentile from a sorted slice (p in 0..100),
// linearly interpolated between neighbors.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
