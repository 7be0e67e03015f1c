package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"primewatch/internal/collector"
	"primewatch/internal/config"
	"primewatch/internal/db"
	"primewatch/internal/engine"
	"primewatch/internal/export"
	"primewatch/internal/store"
	"primewatch/internal/wfm"
)

var version = "dev"

type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	collector *collector.Collector
	store     *store.Store
	db        *db.DB
	export    *export.Writer
}

func main() {
	godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one snapshot pass and exit")
	analytics := flag.Bool("analytics", false, "rebuild analytics from stored snapshots and exit")
	refresh := flag.Bool("refresh-eligibility", false, "rebuild the eligible item list and exit")
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("config validation")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	log.WithField("version", version).Info("primewatch starting")

	client := wfm.NewClient(wfm.Options{
		BaseURL:        cfg.Market.BaseURL,
		Platform:       cfg.Market.Platform,
		Language:       cfg.Market.Language,
		UserAgent:      cfg.Market.UserAgent,
		RequestsPerSec: cfg.Market.RequestsPerSec,
	})
	st := store.New(cfg.Paths.DataDir)

	database, err := db.Open(cfg.Paths.SQLitePath, log)
	if err != nil {
		log.WithError(err).Fatal("open run recorder")
	}
	defer database.Close()

	a := &app{
		cfg: cfg,
		log: log,
		collector: collector.New(client, st, log, collector.Options{
			TopDepth:              cfg.Collector.TopDepth,
			WeeklyVolumeThreshold: cfg.Collector.WeeklyVolumeThreshold,
			VolumeWindowDays:      cfg.Collector.VolumeWindowDays,
			Concurrency:           cfg.Market.Concurrency,
			Platform:              cfg.Market.Platform,
			EligibleFile:          cfg.Paths.EligibleFile,
		}),
		store:  st,
		db:     database,
		export: export.New(cfg.Paths.AnalyticsDir, log),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch {
	case *refresh:
		if err := a.runEligibility(ctx); err != nil {
			log.WithError(err).Fatal("eligibility pass")
		}
	case *once:
		if err := a.runSnapshot(ctx); err != nil {
			log.WithError(err).Fatal("snapshot pass")
		}
	case *analytics:
		if err := a.runAnalytics(); err != nil {
			log.WithError(err).Fatal("analytics rebuild")
		}
	default:
		a.runDaemon(ctx, cancel)
	}
}

// runEligibility rebuilds the eligible item list from the full catalog.
func (a *app) runEligibility(ctx context.Context) error {
	eligible, err := a.collector.RefreshEligibility(ctx)
	if err != nil {
		return err
	}
	a.db.InsertCollectorRun(db.CollectorRun{
		Kind:     "eligibility",
		Eligible: len(eligible),
	})
	return nil
}

// runSnapshot polls the eligible items once. A missing eligibility list
// triggers a refresh first.
func (a *app) runSnapshot(ctx context.Context) error {
	items, err := a.collector.Eligible()
	if err != nil {
		a.log.WithError(err).Info("no eligibility list, refreshing first")
		if items, err = a.collector.RefreshEligibility(ctx); err != nil {
			return err
		}
	}
	sum, err := a.collector.Snapshot(ctx, items, time.Now().UTC())
	if err != nil {
		return err
	}
	a.db.InsertCollectorRun(db.CollectorRun{
		Kind:          "snapshot",
		Items:         sum.Items,
		Failed:        sum.Failed,
		OrderRows:     sum.OrderRows,
		StatRows:      sum.StatRows,
		ComponentRows: sum.ComponentRows,
	})
	return nil
}

// runAnalytics rebuilds the derived tables from the accumulated history
// and publishes them.
func (a *app) runAnalytics() error {
	orders := a.store.LoadOrderbook()
	links := a.store.LoadComponents()
	a.log.WithFields(logrus.Fields{
		"orderbook_rows": len(orders),
		"component_rows": len(links),
	}).Info("analytics rebuild started")

	res := engine.Run(orders, links, engine.Params{
		RollingWindow:        a.cfg.Analytics.RollingWindow,
		LowerPercentile:      a.cfg.Analytics.LowerPercentile,
		UpperPercentile:      a.cfg.Analytics.UpperPercentile,
		PercentileStretch:    a.cfg.Analytics.PercentileStretch,
		MinCalibrationSets:   a.cfg.Analytics.MinCalibrationSets,
		DiscrepancyTolerance: a.cfg.Analytics.DiscrepancyTolerance,
	})
	if err := a.export.WriteAll(res); err != nil {
		return err
	}

	flagged := 0
	for _, d := range res.Discrepancies {
		if d.Flagged {
			flagged++
		}
	}
	if flagged > 0 {
		a.log.WithField("flagged", flagged).Warn("cost reconciliation found disagreements")
	}
	runID := a.db.InsertAnalyticsRun(db.AnalyticsRun{
		OrderbookRows: len(orders),
		SetsIndexed:   len(res.Index),
		SeriesWritten: len(res.Series),
		Discrepancies: len(res.Discrepancies),
		Flagged:       flagged,
	})
	a.db.InsertDiscrepancies(runID, res.Discrepancies)
	return nil
}

// runDaemon schedules the recurring jobs: snapshots every few hours, and
// a daily eligibility refresh followed by an analytics rebuild.
func (a *app) runDaemon(ctx context.Context, cancel context.CancelFunc) {
	c := cron.New(cron.WithSeconds())

	if _, err := c.AddFunc(a.cfg.Schedule.SnapshotCron, func() {
		if err := a.runSnapshot(ctx); err != nil {
			a.log.WithError(err).Error("scheduled snapshot")
		}
	}); err != nil {
		a.log.WithError(err).Fatal("register snapshot job")
	}
	if _, err := c.AddFunc(a.cfg.Schedule.DailyCron, func() {
		if err := a.runEligibility(ctx); err != nil {
			a.log.WithError(err).Error("scheduled eligibility refresh")
		}
		if err := a.runAnalytics(); err != nil {
			a.log.WithError(err).Error("scheduled analytics rebuild")
		}
	}); err != nil {
		a.log.WithError(err).Fatal("register daily job")
	}

	c.Start()
	defer c.Stop()
	a.log.WithFields(logrus.Fields{
		"snapshot_cron": a.cfg.Schedule.SnapshotCron,
		"daily_cron":    a.cfg.Schedule.DailyCron,
	}).Info("scheduler started")

	if os.Getenv("RUN_ON_START") == "true" {
		go func() {
			if err := a.runSnapshot(ctx); err != nil {
				a.log.WithError(err).Error("startup snapshot")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	a.log.Info("shutdown signal received, stopping")
	cancel()
}
