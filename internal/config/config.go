// Package config loads the application configuration from a YAML file,
// applies environment variable overrides, and fills in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Market struct {
		BaseURL        string  `yaml:"base_url"`
		Platform       string  `yaml:"platform"`
		Language       string  `yaml:"language"`
		UserAgent      string  `yaml:"user_agent"`
		RequestsPerSec float64 `yaml:"requests_per_sec"`
		Concurrency    int     `yaml:"concurrency"`
	} `yaml:"market"`
	Collector struct {
		TopDepth              int `yaml:"top_depth"`
		WeeklyVolumeThreshold int `yaml:"weekly_volume_threshold"`
		VolumeWindowDays      int `yaml:"volume_window_days"`
	} `yaml:"collector"`
	Analytics struct {
		RollingWindow        int     `yaml:"rolling_window"`
		LowerPercentile      float64 `yaml:"lower_percentile"`
		UpperPercentile      float64 `yaml:"upper_percentile"`
		PercentileStretch    float64 `yaml:"percentile_stretch"`
		MinCalibrationSets   int     `yaml:"min_calibration_sets"`
		DiscrepancyTolerance float64 `yaml:"discrepancy_tolerance"`
	} `yaml:"analytics"`
	Paths struct {
		DataDir      string `yaml:"data_dir"`
		AnalyticsDir string `yaml:"analytics_dir"`
		EligibleFile string `yaml:"eligible_file"`
		SQLitePath   string `yaml:"sqlite_path"`
	} `yaml:"paths"`
	Schedule struct {
		SnapshotCron string `yaml:"snapshot_cron"`
		DailyCron    string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error: everything has
// a working default.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("WFM_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("WFM_PLATFORM"); v != "" {
		cfg.Market.Platform = v
	}
	if v := os.Getenv("WFM_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Market.RequestsPerSec = rps
		}
	}
	if v := os.Getenv("WEEKLY_VOLUME_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Collector.WeeklyVolumeThreshold = n
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("ANALYTICS_DIR"); v != "" {
		cfg.Paths.AnalyticsDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Paths.SQLitePath = v
	}
	if v := os.Getenv("CRON_SNAPSHOT"); v != "" {
		cfg.Schedule.SnapshotCron = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults
	if cfg.Market.Platform == "" {
		cfg.Market.Platform = "pc"
	}
	if cfg.Market.Language == "" {
		cfg.Market.Language = "en"
	}
	if cfg.Market.RequestsPerSec == 0 {
		cfg.Market.RequestsPerSec = 3
	}
	if cfg.Market.Concurrency == 0 {
		cfg.Market.Concurrency = 4
	}
	if cfg.Collector.TopDepth == 0 {
		cfg.Collector.TopDepth = 3
	}
	if cfg.Collector.WeeklyVolumeThreshold == 0 {
		cfg.Collector.WeeklyVolumeThreshold = 3
	}
	if cfg.Collector.VolumeWindowDays == 0 {
		cfg.Collector.VolumeWindowDays = 7
	}
	if cfg.Analytics.RollingWindow == 0 {
		cfg.Analytics.RollingWindow = 30
	}
	if cfg.Analytics.LowerPercentile == 0 && cfg.Analytics.UpperPercentile == 0 {
		cfg.Analytics.LowerPercentile = 10
		cfg.Analytics.UpperPercentile = 90
	}
	if cfg.Analytics.PercentileStretch == 0 {
		cfg.Analytics.PercentileStretch = 0.8
	}
	if cfg.Analytics.MinCalibrationSets == 0 {
		cfg.Analytics.MinCalibrationSets = 5
	}
	if cfg.Analytics.DiscrepancyTolerance == 0 {
		cfg.Analytics.DiscrepancyTolerance = 0.05
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = "data"
	}
	if cfg.Paths.AnalyticsDir == "" {
		cfg.Paths.AnalyticsDir = "docs/data/analytics"
	}
	if cfg.Paths.EligibleFile == "" {
		cfg.Paths.EligibleFile = "data/eligibility/eligible.json"
	}
	if cfg.Paths.SQLitePath == "" {
		cfg.Paths.SQLitePath = "data/primewatch.db"
	}
	if cfg.Schedule.SnapshotCron == "" {
		cfg.Schedule.SnapshotCron = "0 0 */6 * * *"
	}
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 30 0 * * *"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Validate checks field ranges that would silently break a run.
func (c *Config) Validate() error {
	if c.Market.RequestsPerSec <= 0 {
		return fmt.Errorf("market.requests_per_sec must be positive")
	}
	if c.Collector.VolumeWindowDays <= 0 {
		return fmt.Errorf("collector.volume_window_days must be positive")
	}
	if c.Analytics.LowerPercentile >= c.Analytics.UpperPercentile {
		return fmt.Errorf("analytics: lower_percentile must be below upper_percentile")
	}
	if c.Analytics.DiscrepancyTolerance < 0 {
		return fmt.Errorf("analytics.discrepancy_tolerance must not be negative")
	}
	return nil
}
