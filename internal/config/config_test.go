package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Market.Platform != "pc" || cfg.Market.RequestsPerSec != 3 {
		t.Errorf("market defaults = %+v", cfg.Market)
	}
	if cfg.Collector.WeeklyVolumeThreshold != 3 || cfg.Collector.VolumeWindowDays != 7 {
		t.Errorf("collector defaults = %+v", cfg.Collector)
	}
	if cfg.Analytics.LowerPercentile != 10 || cfg.Analytics.UpperPercentile != 90 {
		t.Errorf("percentile defaults = %+v", cfg.Analytics)
	}
	if cfg.Paths.AnalyticsDir != "docs/data/analytics" {
		t.Errorf("analytics dir = %q", cfg.Paths.AnalyticsDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_FileValuesAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
market:
  platform: ps4
  requests_per_sec: 1.5
collector:
  weekly_volume_threshold: 10
paths:
  data_dir: /tmp/pw-data
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WEEKLY_VOLUME_THRESHOLD", "25")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Market.Platform != "ps4" || cfg.Market.RequestsPerSec != 1.5 {
		t.Errorf("market = %+v", cfg.Market)
	}
	if cfg.Collector.WeeklyVolumeThreshold != 25 {
		t.Errorf("env override lost: threshold = %d", cfg.Collector.WeeklyVolumeThreshold)
	}
	if cfg.Paths.DataDir != "/tmp/pw-data" {
		t.Errorf("data dir = %q", cfg.Paths.DataDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	// Untouched sections still get defaults.
	if cfg.Collector.TopDepth != 3 {
		t.Errorf("top depth = %d", cfg.Collector.TopDepth)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("market: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_RejectsBadPercentiles(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Analytics.LowerPercentile = 90
	cfg.Analytics.UpperPercentile = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
