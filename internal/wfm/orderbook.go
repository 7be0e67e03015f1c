package wfm

import "sort"

// onlineStates are the user states whose orders count toward the book:
// offline players' listings are stale and unfillable.
var onlineStates = map[string]bool{
	"ingame": true,
	"online": true,
}

// TopOfBook is a lightweight order-book snapshot for one item: the average
// of the best K prices per side plus the visible order counts. A side with
// no active orders has OK=false: an empty book is unknown, not free.
type TopOfBook struct {
	BuyAvg    float64
	BuyOK     bool
	BuyCount  int
	SellAvg   float64
	SellOK    bool
	SellCount int
}

// Summarize reduces an order list to its top-of-book snapshot. Only
// visible orders from online/ingame users are considered. Buys are ranked
// from highest price, sells from lowest, and the best depth prices are
// averaged per side.
func Summarize(orders []Order, depth int) TopOfBook {
	if depth <= 0 {
		depth = 3
	}

	var buys, sells []float64
	for _, o := range orders {
		if !o.Visible || !onlineStates[o.User.Status] {
			continue
		}
		switch o.OrderType {
		case "buy":
			buys = append(buys, o.Platinum)
		case "sell":
			sells = append(sells, o.Platinum)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(buys)))
	sort.Float64s(sells)

	tob := TopOfBook{BuyCount: len(buys), SellCount: len(sells)}
	if avg, ok := avgTop(buys, depth); ok {
		tob.BuyAvg, tob.BuyOK = avg, true
	}
	if avg, ok := avgTop(sells, depth); ok {
		tob.SellAvg, tob.SellOK = avg, true
	}
	return tob
}

// avgTop averages the first k values (fewer if the list is shorter).
func avgTop(prices []float64, k int) (float64, bool) {
	if len(prices) == 0 {
		return 0, false
	}
	if k > len(prices) {
		k = len(prices)
	}
	var sum float64
	for _, p := range prices[:k] {
		sum += p
	}
	return sum / float64(k), true
}

// WeeklyVolume sums an item's traded volume over the last `days` daily
// buckets of its 90-day statistics, newest first. Buckets with malformed
// timestamps sort last and fall out of the window.
func WeeklyVolume(stats *Statistics, days int) int {
	if stats == nil || days <= 0 {
		return 0
	}
	buckets := make([]StatBucket, len(stats.Last90Days))
	copy(buckets, stats.Last90Days)
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Datetime > buckets[j].Datetime
	})
	if len(buckets) > days {
		buckets = buckets[:days]
	}
	total := 0
	for _, b := range buckets {
		total += b.Volume
	}
	return total
}
