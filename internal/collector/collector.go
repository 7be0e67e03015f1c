// Package collector drives the polling side: it decides which items are
// liquid enough to watch, and snapshots their order books, official
// statistics, and set memberships into the raw store.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"primewatch/internal/engine"
	"primewatch/internal/store"
	"primewatch/internal/wfm"
)

// Options tune one collector instance.
type Options struct {
	TopDepth              int    // order-book prices averaged per side
	WeeklyVolumeThreshold int    // strict minimum weekly units traded
	VolumeWindowDays      int    // daily buckets summed for eligibility
	Concurrency           int    // in-flight item fetches
	Platform              string // tagged onto every stored row
	EligibleFile          string // JSON list of items worth snapshotting
}

func (o Options) normalized() Options {
	if o.TopDepth <= 0 {
		o.TopDepth = 3
	}
	if o.WeeklyVolumeThreshold <= 0 {
		o.WeeklyVolumeThreshold = 3
	}
	if o.VolumeWindowDays <= 0 {
		o.VolumeWindowDays = 7
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Platform == "" {
		o.Platform = "pc"
	}
	return o
}

// Collector polls the marketplace and writes snapshots to the raw store.
type Collector struct {
	client *wfm.Client
	store  *store.Store
	log    *logrus.Logger
	opts   Options
}

// New creates a collector. A nil logger falls back to the logrus default.
func New(client *wfm.Client, st *store.Store, log *logrus.Logger, opts Options) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{client: client, store: st, log: log, opts: opts.normalized()}
}

// eligibleList is the persisted output of an eligibility pass.
type eligibleList struct {
	GeneratedAt time.Time `json:"generated_at"`
	Threshold   int       `json:"threshold"`
	Items       []string  `json:"items"`
}

// RefreshEligibility walks the full item catalog and keeps the items whose
// traded volume over the recent window strictly exceeds the threshold. The
// resulting list is persisted so snapshot runs can reuse it until the next
// refresh. Items whose statistics cannot be fetched are skipped, not fatal.
func (c *Collector) RefreshEligibility(ctx context.Context) ([]string, error) {
	items, err := c.client.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	c.log.WithField("items", len(items)).Info("eligibility pass started")

	var (
		mu       sync.Mutex
		eligible []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, item := range items {
		item := item
		g.Go(func() error {
			stats, err := c.client.ItemStatistics(gctx, item.URLName)
			if err != nil {
				c.log.WithError(err).WithField("item", item.URLName).Warn("statistics fetch failed")
				return nil
			}
			if wfm.WeeklyVolume(stats, c.opts.VolumeWindowDays) > c.opts.WeeklyVolumeThreshold {
				mu.Lock()
				eligible = append(eligible, item.URLName)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(eligible)

	if err := c.saveEligible(eligible); err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"checked":  len(items),
		"eligible": len(eligible),
	}).Info("eligibility pass finished")
	return eligible, nil
}

func (c *Collector) saveEligible(items []string) error {
	if c.opts.EligibleFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(eligibleList{
		GeneratedAt: time.Now().UTC(),
		Threshold:   c.opts.WeeklyVolumeThreshold,
		Items:       items,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.opts.EligibleFile), 0o755); err != nil {
		return fmt.Errorf("mkdir eligibility dir: %w", err)
	}
	if err := os.WriteFile(c.opts.EligibleFile, data, 0o644); err != nil {
		return fmt.Errorf("write eligibility list: %w", err)
	}
	return nil
}

// Eligible loads the persisted eligibility list.
func (c *Collector) Eligible() ([]string, error) {
	data, err := os.ReadFile(c.opts.EligibleFile)
	if err != nil {
		return nil, fmt.Errorf("read eligibility list: %w", err)
	}
	var list eligibleList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse eligibility list: %w", err)
	}
	return list.Items, nil
}

// Summary reports what one snapshot pass produced.
type Summary struct {
	Items         int
	Failed        int
	OrderRows     int
	StatRows      int
	ComponentRows int
}

// Snapshot fetches order books, 48h statistics, and (for set items) the
// component lists of the given items, then appends everything to the raw
// store under one shared timestamp. A failed item costs only its own rows.
func (c *Collector) Snapshot(ctx context.Context, items []string, now time.Time) (Summary, error) {
	var (
		mu        sync.Mutex
		sum       Summary
		orderRows []store.OrderbookRow
		statRows  []store.StatsRow
		compRows  []store.ComponentRow
	)
	sum.Items = len(items)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, item := range items {
		item := item
		g.Go(func() error {
			oRow, sRows, cRows, err := c.snapshotItem(gctx, item, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.WithError(err).WithField("item", item).Warn("snapshot failed")
				sum.Failed++
				return nil
			}
			orderRows = append(orderRows, oRow)
			statRows = append(statRows, sRows...)
			compRows = append(compRows, cRows...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}

	if err := c.store.AppendOrderbook(now, orderRows); err != nil {
		return sum, fmt.Errorf("append orderbook: %w", err)
	}
	if err := c.store.AppendStats(now, statRows); err != nil {
		return sum, fmt.Errorf("append stats: %w", err)
	}
	if err := c.store.AppendComponents(now, compRows); err != nil {
		return sum, fmt.Errorf("append components: %w", err)
	}

	sum.OrderRows = len(orderRows)
	sum.StatRows = len(statRows)
	sum.ComponentRows = len(compRows)
	c.log.WithFields(logrus.Fields{
		"items":      sum.Items,
		"failed":     sum.Failed,
		"orders":     sum.OrderRows,
		"stats":      sum.StatRows,
		"components": sum.ComponentRows,
	}).Info("snapshot pass finished")
	return sum, nil
}

func (c *Collector) snapshotItem(ctx context.Context, item string, now time.Time) (store.OrderbookRow, []store.StatsRow, []store.ComponentRow, error) {
	orders, err := c.client.ItemOrders(ctx, item)
	if err != nil {
		return store.OrderbookRow{}, nil, nil, fmt.Errorf("orders: %w", err)
	}
	tob := wfm.Summarize(orders, c.opts.TopDepth)

	row := store.OrderbookRow{
		Item:      item,
		TS:        now,
		BuyCount:  tob.BuyCount,
		SellCount: tob.SellCount,
		Platform:  c.opts.Platform,
	}
	if tob.BuyOK {
		row.TopBuyAvg = engine.Some(tob.BuyAvg)
	}
	if tob.SellOK {
		row.TopSellAvg = engine.Some(tob.SellAvg)
	}

	var statRows []store.StatsRow
	stats, err := c.client.ItemStatistics(ctx, item)
	if err != nil {
		// Order book already in hand; keep it and log the gap.
		c.log.WithError(err).WithField("item", item).Warn("statistics fetch failed")
	} else {
		row.WeeklyVolume = wfm.WeeklyVolume(stats, c.opts.VolumeWindowDays)
		for _, b := range stats.Last48Hours {
			statRows = append(statRows, store.StatsRow{
				Item:     item,
				Bucket:   b.Datetime,
				Volume:   b.Volume,
				Min:      engine.Some(b.MinPrice),
				Max:      engine.Some(b.MaxPrice),
				Avg:      engine.Some(b.AvgPrice),
				Median:   engine.Some(b.Median),
				Platform: c.opts.Platform,
			})
		}
	}

	var compRows []store.ComponentRow
	if wfm.IsSetURL(item) {
		comps, err := c.client.SetComponents(ctx, item)
		if err != nil {
			c.log.WithError(err).WithField("item", item).Warn("component fetch failed")
		}
		for _, comp := range comps {
			compRows = append(compRows, store.ComponentRow{
				Set:      comp.Set,
				Part:     comp.Part,
				Quantity: comp.Quantity,
				Platform: c.opts.Platform,
			})
		}
	}
	return row, statRows, compRows, nil
}
