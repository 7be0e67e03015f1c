package engine

import (
	"math"
	"testing"
)

func TestAsOfLookup_BackwardNearestMatch(t *testing.T) {
	series := []DailySummary{
		{Date: "2026-03-07", BuyMed: Some(8)},
		{Date: "2026-03-09", BuyMed: Some(9)},
		{Date: "2026-03-12", BuyMed: Some(14)},
	}
	// As-of 2026-03-10: greatest date <= 10 is the 9th, never the 12th.
	got, ok := asOfLookup(series, "2026-03-10")
	if !ok || got.Date != "2026-03-09" {
		t.Fatalf("asOfLookup = %+v (ok=%v), want row dated 2026-03-09", got, ok)
	}
	// Exact match is allowed.
	got, ok = asOfLookup(series, "2026-03-12")
	if !ok || got.Date != "2026-03-12" {
		t.Fatalf("exact date must match, got %+v", got)
	}
	// Everything postdates the reference: no row.
	if _, ok := asOfLookup(series, "2026-03-01"); ok {
		t.Fatal("lookup before first observation must fail")
	}
}

func TestBuildPartsLatest_AlignsToSetDate(t *testing.T) {
	comps := []ComponentLink{
		{Set: "ember_prime_set", Part: "ember_prime_chassis", Platform: "pc", Quantity: 1},
		{Set: "ember_prime_set", Part: "ember_prime_systems", Platform: "pc", Quantity: 2},
	}
	daily := []DailySummary{
		// chassis observed on two dates; the one after the set's latest
		// date must be ignored.
		{Item: "ember_prime_chassis", Platform: "pc", Date: "2026-03-08", BuyMed: Some(8), SellDepthMed: Some(3)},
		{Item: "ember_prime_chassis", Platform: "pc", Date: "2026-03-11", BuyMed: Some(99)},
		// systems has no buy side on its resolved date: sell fallback.
		{Item: "ember_prime_systems", Platform: "pc", Date: "2026-03-09", SellMed: Some(6), SellDepthMed: Some(10)},
	}
	latest := map[setKey]string{
		{Set: "ember_prime_set", Platform: "pc"}: "2026-03-10",
	}

	out := BuildPartsLatest(comps, daily, latest)
	if len(out) != 2 {
		t.Fatalf("expected 2 breakdown rows, got %d", len(out))
	}

	chassis, systems := out[0], out[1]
	if chassis.AsOfDate != "2026-03-08" || chassis.UnitCost.Float64 != 8 {
		t.Errorf("chassis resolved %s at %v, want 2026-03-08 at 8", chassis.AsOfDate, chassis.UnitCost)
	}
	if chassis.PriceSource != PriceSourceBuy {
		t.Errorf("chassis source = %q, want BUY", chassis.PriceSource)
	}
	if systems.UnitCost.Float64 != 6 || systems.PriceSource != PriceSourceSell {
		t.Errorf("systems = %v via %q, want 6 via SELL", systems.UnitCost, systems.PriceSource)
	}
	if systems.SellDepth.Float64 != 10 {
		t.Errorf("systems depth = %v, want 10", systems.SellDepth)
	}
}

func TestBuildPartsLatest_PartWithNoHistory(t *testing.T) {
	comps := []ComponentLink{
		{Set: "ember_prime_set", Part: "ember_prime_blueprint", Platform: "pc", Quantity: 1},
	}
	latest := map[setKey]string{
		{Set: "ember_prime_set", Platform: "pc"}: "2026-03-10",
	}
	out := BuildPartsLatest(comps, nil, latest)
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	r := out[0]
	if r.UnitCost.Valid || r.PriceSource != "" || r.AsOfDate != "" {
		t.Errorf("part with no history must resolve to nothing, got %+v", r)
	}
}

func TestReconcile_AgreementWithinTolerance(t *testing.T) {
	k := setKey{Set: "loki_prime_set", Platform: "pc"}
	parts := []PartLatestRecord{
		{Set: k.Set, Platform: k.Platform, Part: "loki_prime_chassis", Quantity: 1, UnitCost: Some(10)},
		{Set: k.Set, Platform: k.Platform, Part: "loki_prime_systems", Quantity: 2, UnitCost: Some(5)},
	}
	model := map[setKey]NullFloat{k: Some(20)}

	out := Reconcile(model, parts, DefaultParams())
	if len(out) != 1 {
		t.Fatalf("expected 1 reconciliation row, got %d", len(out))
	}
	d := out[0]
	if d.SnapshotCost.Float64 != 20 || d.AbsDiff.Float64 != 0 || d.RelDiff.Float64 != 0 {
		t.Errorf("reconciliation of equal estimates = %+v", d)
	}
	if d.Flagged {
		t.Error("matching estimates must not be flagged")
	}
}

func TestReconcile_InjectedMismatchIsFlagged(t *testing.T) {
	k := setKey{Set: "loki_prime_set", Platform: "pc"}
	// Quantity altered between the two paths: 2 → 3 inflates the
	// snapshot total to 25 vs the model's 20 (25% off).
	parts := []PartLatestRecord{
		{Set: k.Set, Platform: k.Platform, Part: "loki_prime_chassis", Quantity: 1, UnitCost: Some(10)},
		{Set: k.Set, Platform: k.Platform, Part: "loki_prime_systems", Quantity: 3, UnitCost: Some(5)},
	}
	model := map[setKey]NullFloat{k: Some(20)}

	out := Reconcile(model, parts, DefaultParams())
	d := out[0]
	if math.Abs(d.AbsDiff.Float64-5) > 1e-12 || math.Abs(d.RelDiff.Float64-0.25) > 1e-12 {
		t.Errorf("diffs = %v/%v, want 5/0.25", d.AbsDiff, d.RelDiff)
	}
	if !d.Flagged {
		t.Error("25%% relative difference must be flagged at 5%% tolerance")
	}
}

func TestReconcile_OneSidedEstimateIsFlagged(t *testing.T) {
	k := setKey{Set: "mag_prime_set", Platform: "pc"}
	parts := []PartLatestRecord{
		{Set: k.Set, Platform: k.Platform, Part: "mag_prime_chassis", Quantity: 1, UnitCost: None()},
	}
	model := map[setKey]NullFloat{k: Some(12)}

	out := Reconcile(model, parts, DefaultParams())
	d := out[0]
	if d.SnapshotCost.Valid {
		t.Error("snapshot cost must be missing when a part is unpriced")
	}
	if !d.Flagged {
		t.Error("model-only estimate must be flagged")
	}
	if d.AbsDiff.Valid || d.RelDiff.Valid {
		t.Error("diffs are undefined for a one-sided comparison")
	}
}

func TestReconcile_BothMissingNotFlagged(t *testing.T) {
	k := setKey{Set: "mag_prime_set", Platform: "pc"}
	parts := []PartLatestRecord{
		{Set: k.Set, Platform: k.Platform, Part: "mag_prime_chassis", Quantity: 1, UnitCost: None()},
	}
	out := Reconcile(map[setKey]NullFloat{k: None()}, parts, DefaultParams())
	if out[0].Flagged {
		t.Error("nothing to compare: must not be flagged")
	}
}
