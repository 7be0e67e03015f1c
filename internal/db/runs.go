package db

import (
	"database/sql"
	"time"

	"primewatch/internal/engine"
)

// CollectorRun is one recorded collector pass.
type CollectorRun struct {
	ID            int64
	Timestamp     string
	Kind          string // "eligibility" or "snapshot"
	Items         int
	Failed        int
	Eligible      int
	OrderRows     int
	StatRows      int
	ComponentRows int
}

// AnalyticsRun is one recorded analytics rebuild.
type AnalyticsRun struct {
	ID            int64
	Timestamp     string
	OrderbookRows int
	SetsIndexed   int
	SeriesWritten int
	Discrepancies int
	Flagged       int
}

// InsertCollectorRun records a collector pass and returns its row id.
// Failures are logged, not fatal: a broken ledger must not stop polling.
func (d *DB) InsertCollectorRun(r CollectorRun) int64 {
	res, err := d.sql.Exec(`INSERT INTO collector_runs
		(timestamp, kind, items, failed, eligible, order_rows, stat_rows, component_rows)
		VALUES (?,?,?,?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339), r.Kind,
		r.Items, r.Failed, r.Eligible, r.OrderRows, r.StatRows, r.ComponentRows)
	if err != nil {
		d.log.WithError(err).Warn("record collector run")
		return 0
	}
	id, _ := res.LastInsertId()
	return id
}

// InsertAnalyticsRun records an analytics rebuild and returns its row id.
func (d *DB) InsertAnalyticsRun(r AnalyticsRun) int64 {
	res, err := d.sql.Exec(`INSERT INTO analytics_runs
		(timestamp, orderbook_rows, sets_indexed, series_written, discrepancies, flagged)
		VALUES (?,?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339),
		r.OrderbookRows, r.SetsIndexed, r.SeriesWritten, r.Discrepancies, r.Flagged)
	if err != nil {
		d.log.WithError(err).Warn("record analytics run")
		return 0
	}
	id, _ := res.LastInsertId()
	return id
}

// InsertDiscrepancies persists a run's reconciliation findings.
func (d *DB) InsertDiscrepancies(runID int64, findings []engine.Discrepancy) {
	if runID == 0 || len(findings) == 0 {
		return
	}
	tx, err := d.sql.Begin()
	if err != nil {
		d.log.WithError(err).Warn("record discrepancies: begin tx")
		return
	}
	stmt, err := tx.Prepare(`INSERT INTO discrepancy_findings
		(run_id, set_url, platform, model_cost, snapshot_cost, abs_diff, rel_diff, flagged)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		d.log.WithError(err).Warn("record discrepancies: prepare")
		return
	}
	defer stmt.Close()

	for _, f := range findings {
		stmt.Exec(runID, f.Set, f.Platform,
			nullable(f.ModelCost), nullable(f.SnapshotCost),
			nullable(f.AbsDiff), nullable(f.RelDiff), f.Flagged)
	}
	if err := tx.Commit(); err != nil {
		d.log.WithError(err).Warn("record discrepancies: commit")
	}
}

// GetDiscrepancies retrieves the findings of one analytics run, flagged
// rows first.
func (d *DB) GetDiscrepancies(runID int64) []engine.Discrepancy {
	rows, err := d.sql.Query(`
		SELECT set_url, platform, model_cost, snapshot_cost, abs_diff, rel_diff, flagged
		FROM discrepancy_findings WHERE run_id = ?
		ORDER BY flagged DESC, set_url, platform
	`, runID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []engine.Discrepancy
	for rows.Next() {
		var f engine.Discrepancy
		var model, snap, abs, rel sql.NullFloat64
		if err := rows.Scan(&f.Set, &f.Platform, &model, &snap, &abs, &rel, &f.Flagged); err != nil {
			continue
		}
		f.ModelCost = fromNullable(model)
		f.SnapshotCost = fromNullable(snap)
		f.AbsDiff = fromNullable(abs)
		f.RelDiff = fromNullable(rel)
		out = append(out, f)
	}
	return out
}

// GetCollectorRuns returns the most recent collector runs, newest first.
func (d *DB) GetCollectorRuns(limit int) []CollectorRun {
	rows, err := d.sql.Query(`
		SELECT id, timestamp, kind, items, failed, eligible, order_rows, stat_rows, component_rows
		FROM collector_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []CollectorRun
	for rows.Next() {
		var r CollectorRun
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Kind, &r.Items, &r.Failed,
			&r.Eligible, &r.OrderRows, &r.StatRows, &r.ComponentRows); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

func nullable(n engine.NullFloat) sql.NullFloat64 {
	return sql.NullFloat64{Float64: n.Float64, Valid: n.Valid}
}

func fromNullable(n sql.NullFloat64) engine.NullFloat {
	if !n.Valid {
		return engine.None()
	}
	return engine.Some(n.Float64)
}
