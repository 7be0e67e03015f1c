package engine

import "time"

// PriceSourceBuy and PriceSourceSell tag which side of the book priced a
// part in the latest-parts breakdown.
const (
	PriceSourceBuy  = "BUY"
	PriceSourceSell = "SELL"
)

// OrderSnapshot is one raw order-book observation for an item: top-of-book
// averages and visible order counts for both sides at a point in time.
// Many rows per item per day are expected (the collector polls every 6h).
type OrderSnapshot struct {
	Item       string
	Platform   string
	TS         time.Time // UTC
	TopBuyAvg  NullFloat
	BuyCount   int
	TopSellAvg NullFloat
	SellCount  int
}

// ComponentLink says "assembling Set requires Quantity units of Part".
// Raw links may repeat across collection runs with differing quantities
// (transient partial reads); ResolveComponents collapses them.
type ComponentLink struct {
	Set      string
	Part     string
	Platform string
	Quantity int
}

// DailySummary is the robust daily collapse of OrderSnapshot rows:
// one row per (item, platform, UTC date), each field the median over that
// group's non-missing observations. Date is "2006-01-02".
type DailySummary struct {
	Item         string
	Platform     string
	Date         string
	BuyMed       NullFloat
	SellMed      NullFloat
	BuyDepthMed  NullFloat
	SellDepthMed NullFloat
}

// SetStructure holds per-set structural facts derived from the normalized
// component table, plus the two classifications that gate the cost model.
type SetStructure struct {
	Set        string
	Platform   string
	NumParts   int  // distinct parts
	TotalQty   int  // summed required quantity
	Craftable  bool // NumParts >= 2 || TotalQty >= 2
	Qualifying bool // name predicate (prime-set family by default)
}

// SetDailyRecord is one day of derived metrics for a craftable qualifying
// set: the set's own market summary joined with its parts cost model.
type SetDailyRecord struct {
	Set      string
	Platform string
	Date     string

	// Set's own daily market summary.
	BuyMed       NullFloat
	SellMed      NullFloat
	BuyDepthMed  NullFloat
	SellDepthMed NullFloat

	// Cost model.
	PartsCost        NullFloat // sum of qty × effective part price; missing if any part unpriced that day
	BottleneckDepth  float64   // min over parts of floor(sell depth / qty); missing depth counts as 0
	Margin           NullFloat
	ROIPct           NullFloat
	OpportunityScore NullFloat

	// KPI.
	DailyVolumeCap    float64
	KPIDailyPotential float64
	KPI01             NullFloat
	KPI0100           NullFloat
}

// SetIndexRecord is the latest SetDailyRecord per set plus the trailing
// 30-sample KPI average.
type SetIndexRecord struct {
	SetDailyRecord
	KPI30Avg NullFloat
}

// PartLatestRecord is the point-in-time parts breakdown: each part priced
// as of the owning set's latest observed date (backward as-of lookup).
type PartLatestRecord struct {
	Set         string
	Platform    string
	Part        string
	Quantity    int
	UnitCost    NullFloat
	PriceSource string    // BUY, SELL, or "" when no price resolved
	SellDepth   NullFloat // sell-side depth as of the resolved date
	AsOfDate    string    // resolved part date, "" when none <= the set's date
}

// Discrepancy is the cross-check between the cost model's parts cost and
// the total recomputed from the as-of breakdown. The two paths price the
// same underlying summaries through different joins, so persistent
// disagreement signals a data or logic defect.
type Discrepancy struct {
	Set          string
	Platform     string
	ModelCost    NullFloat
	SnapshotCost NullFloat
	AbsDiff      NullFloat
	RelDiff      NullFloat
	Flagged      bool
}

// Result bundles the three output tables and the reconciliation report.
type Result struct {
	Index         []SetIndexRecord
	Series        map[string][]SetDailyRecord // keyed by set identifier
	PartsLatest   []PartLatestRecord
	Discrepancies []Discrepancy
}

// NamePredicate classifies which set identifiers qualify for analytics.
type NamePredicate func(set string) bool

// Params configures every pipeline stage. Zero values fall back to the
// documented defaults (see DefaultParams).
type Params struct {
	Qualifying           NamePredicate
	MinDistinctParts     int     // craftable when NumParts >= this...
	MinTotalQty          int     // ...or TotalQty >= this
	RollingWindow        int     // KPI trailing samples
	LowerPercentile      float64 // calibration band lower bound
	UpperPercentile      float64 // calibration band upper bound
	PercentileStretch    float64 // where the upper percentile lands on [0,1]
	MinCalibrationSets   int     // below this, use a fixed [0, max(1, max)] range
	DiscrepancyTolerance float64 // relative difference that flags a set
}

// DefaultParams returns the documented stage defaults.
func DefaultParams() Params {
	return Params{
		Qualifying:           IsPrimeSet,
		MinDistinctParts:     2,
		MinTotalQty:          2,
		RollingWindow:        30,
		LowerPercentile:      10,
		UpperPercentile:      90,
		PercentileStretch:    0.8,
		MinCalibrationSets:   5,
		DiscrepancyTolerance: 0.05,
	}
}

// normalized fills in defaults for zero-valued fields so callers can
// construct Params piecemeal.
func (p Params) normalized() Params {
	def := DefaultParams()
	if p.Qualifying == nil {
		p.Qualifying = def.Qualifying
	}
	if p.MinDistinctParts == 0 {
		p.MinDistinctParts = def.MinDistinctParts
	}
	if p.MinTotalQty == 0 {
		p.MinTotalQty = def.MinTotalQty
	}
	if p.RollingWindow == 0 {
		p.RollingWindow = def.RollingWindow
	}
	if p.LowerPercentile == 0 && p.UpperPercentile == 0 {
		p.LowerPercentile = def.LowerPercentile
		p.UpperPercentile = def.UpperPercentile
	}
	if p.PercentileStretch == 0 {
		p.PercentileStretch = def.PercentileStretch
	}
	if p.MinCalibrationSets == 0 {
		p.MinCalibrationSets = def.MinCalibrationSets
	}
	if p.DiscrepancyTolerance == 0 {
		p.DiscrepancyTolerance = def.DiscrepancyTolerance
	}
	return p
}
