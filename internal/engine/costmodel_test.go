package engine

import (
	"math"
	"testing"
)

// fixture: a qualifying two-part set with full price data on one date.
func costFixture() ([]DailySummary, []ComponentLink, []SetStructure) {
	daily := []DailySummary{
		{Item: "volt_prime_set", Platform: "pc", Date: "2026-03-10", SellMed: Some(35), BuyMed: Some(28), BuyDepthMed: Some(4), SellDepthMed: Some(5)},
		{Item: "volt_prime_chassis", Platform: "pc", Date: "2026-03-10", BuyMed: Some(10), SellMed: Some(12), SellDepthMed: Some(9)},
		{Item: "volt_prime_systems", Platform: "pc", Date: "2026-03-10", BuyMed: Some(5), SellMed: Some(6), SellDepthMed: Some(13)},
	}
	links := []ComponentLink{
		{Set: "volt_prime_set", Part: "volt_prime_chassis", Platform: "pc", Quantity: 1},
		{Set: "volt_prime_set", Part: "volt_prime_systems", Platform: "pc", Quantity: 2},
	}
	comps, structs := ResolveComponents(links, DefaultParams())
	return daily, comps, structs
}

func TestBuildSetDaily_CostMarginROI(t *testing.T) {
	daily, comps, structs := costFixture()
	recs := BuildSetDaily(daily, comps, structs, DefaultParams())
	if len(recs) != 1 {
		t.Fatalf("expected 1 set/day record, got %d", len(recs))
	}
	r := recs[0]

	// parts cost = 1×10 + 2×5 = 20
	if !r.PartsCost.Valid || r.PartsCost.Float64 != 20 {
		t.Errorf("PartsCost = %v, want 20", r.PartsCost)
	}
	// margin = 35 − 20 = 15, ROI = 100·15/20 = 75
	if !r.Margin.Valid || r.Margin.Float64 != 15 {
		t.Errorf("Margin = %v, want 15", r.Margin)
	}
	if !r.ROIPct.Valid || math.Abs(r.ROIPct.Float64-75) > 1e-12 {
		t.Errorf("ROIPct = %v, want 75.0", r.ROIPct)
	}
	// bottleneck = min(floor(9/1), floor(13/2)) = min(9, 6) = 6
	if r.BottleneckDepth != 6 {
		t.Errorf("BottleneckDepth = %v, want 6", r.BottleneckDepth)
	}
	// opportunity = margin · log1p(sqrt(buyDepth·bottleneck)) = 15·log1p(sqrt(24))
	want := 15 * math.Log1p(math.Sqrt(4*6))
	if math.Abs(r.OpportunityScore.Float64-want) > 1e-12 {
		t.Errorf("OpportunityScore = %v, want %v", r.OpportunityScore.Float64, want)
	}
}

func TestBuildSetDaily_MissingPartPricePoisonsDate(t *testing.T) {
	daily, comps, structs := costFixture()
	// Strip both prices from one part: that date's cost must become
	// missing, never a partial sum.
	for i := range daily {
		if daily[i].Item == "volt_prime_systems" {
			daily[i].BuyMed = None()
			daily[i].SellMed = None()
		}
	}
	recs := BuildSetDaily(daily, comps, structs, DefaultParams())
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.PartsCost.Valid {
		t.Errorf("PartsCost = %v, want missing when a part is unpriced", r.PartsCost.Float64)
	}
	if r.Margin.Valid || r.ROIPct.Valid || r.OpportunityScore.Valid {
		t.Error("margin/ROI/opportunity must stay missing when cost is missing")
	}
}

func TestBuildSetDaily_PartAbsentOnDatePoisons(t *testing.T) {
	daily, comps, structs := costFixture()
	// Remove one part's row entirely for the date.
	var filtered []DailySummary
	for _, d := range daily {
		if d.Item != "volt_prime_systems" {
			filtered = append(filtered, d)
		}
	}
	recs := BuildSetDaily(filtered, comps, structs, DefaultParams())
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].PartsCost.Valid {
		t.Error("a part with no summary at all on the date must poison the cost")
	}
	// The absent part contributes zero depth, so the bottleneck collapses.
	if recs[0].BottleneckDepth != 0 {
		t.Errorf("BottleneckDepth = %v, want 0", recs[0].BottleneckDepth)
	}
}

func TestBuildSetDaily_SellFallbackWhenBuyMissingOrZero(t *testing.T) {
	daily, comps, structs := costFixture()
	for i := range daily {
		switch daily[i].Item {
		case "volt_prime_chassis":
			daily[i].BuyMed = None() // no buy side at all
		case "volt_prime_systems":
			daily[i].BuyMed = Some(0) // zero is not a usable buy price
		}
	}
	recs := BuildSetDaily(daily, comps, structs, DefaultParams())
	// cost = 1×12 (sell) + 2×6 (sell) = 24
	if !recs[0].PartsCost.Valid || recs[0].PartsCost.Float64 != 24 {
		t.Fatalf("PartsCost = %v, want 24 via sell fallback", recs[0].PartsCost)
	}
}

func TestBuildSetDaily_NonQualifyingSetExcluded(t *testing.T) {
	daily, comps, structs := costFixture()
	p := DefaultParams()
	p.Qualifying = func(string) bool { return false }
	_, structs = ResolveComponents(comps, p)
	if recs := BuildSetDaily(daily, comps, structs, p); len(recs) != 0 {
		t.Fatalf("non-qualifying set produced %d records", len(recs))
	}
}

func TestRoiPct_ZeroCostIsMissing(t *testing.T) {
	if roiPct(Some(10), Some(0)).Valid {
		t.Error("ROI with zero cost must be missing, not infinite")
	}
	if roiPct(Some(10), None()).Valid {
		t.Error("ROI with missing cost must be missing")
	}
}

func TestEffectivePrice_SourceTags(t *testing.T) {
	if _, src := effectivePrice(DailySummary{BuyMed: Some(8), SellMed: Some(9)}); src != PriceSourceBuy {
		t.Errorf("source = %q, want BUY", src)
	}
	if _, src := effectivePrice(DailySummary{SellMed: Some(9)}); src != PriceSourceSell {
		t.Errorf("source = %q, want SELL", src)
	}
	if price, src := effectivePrice(DailySummary{}); price.Valid || src != "" {
		t.Error("no data must yield no price and no source")
	}
}
