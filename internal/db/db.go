// Package db records what each collector and analytics run did, in a
// local SQLite database. The raw market data itself lives in the CSV
// store; this is the operational ledger an operator queries to see when
// runs happened and which cost discrepancies they surfaced.
package db

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
	log *logrus.Logger
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string, log *logrus.Logger) (*DB, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB, log: log}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	log.WithField("path", path).Debug("run recorder opened")
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS collector_runs (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp      TEXT NOT NULL,
				kind           TEXT NOT NULL,
				items          INTEGER NOT NULL,
				failed         INTEGER NOT NULL,
				eligible       INTEGER NOT NULL,
				order_rows     INTEGER NOT NULL,
				stat_rows      INTEGER NOT NULL,
				component_rows INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_collector_runs_ts ON collector_runs(timestamp);

			CREATE TABLE IF NOT EXISTS analytics_runs (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp      TEXT NOT NULL,
				orderbook_rows INTEGER NOT NULL,
				sets_indexed   INTEGER NOT NULL,
				series_written INTEGER NOT NULL,
				discrepancies  INTEGER NOT NULL,
				flagged        INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_analytics_runs_ts ON analytics_runs(timestamp);

			CREATE TABLE IF NOT EXISTS discrepancy_findings (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id        INTEGER NOT NULL REFERENCES analytics_runs(id),
				set_url       TEXT NOT NULL,
				platform      TEXT NOT NULL,
				model_cost    REAL,
				snapshot_cost REAL,
				abs_diff      REAL,
				rel_diff      REAL,
				flagged       INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_discrepancy_run ON discrepancy_findings(run_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		d.log.Debug("applied migration v1")
	}
	return nil
}
