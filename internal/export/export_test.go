package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"primewatch/internal/engine"
)

func quietWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(dir, log), dir
}

func sampleResult() *engine.Result {
	day := engine.SetDailyRecord{
		Set: "volt_prime_set", Platform: "pc", Date: "2026-03-10",
		BuyMed:  engine.Some(30),
		SellMed: engine.Some(35),
		// Depths missing: cells must stay empty.
		PartsCost:         engine.Some(20),
		BottleneckDepth:   6,
		Margin:            engine.Some(15),
		ROIPct:            engine.Some(75),
		OpportunityScore:  engine.Some(12.5),
		DailyVolumeCap:    4,
		KPIDailyPotential: 60,
		KPI01:             engine.Some(0.8),
		KPI0100:           engine.Some(80),
	}
	return &engine.Result{
		Index: []engine.SetIndexRecord{
			{SetDailyRecord: day, KPI30Avg: engine.Some(42.5)},
		},
		Series: map[string][]engine.SetDailyRecord{"volt_prime_set": {day}},
		PartsLatest: []engine.PartLatestRecord{
			{
				Set: "volt_prime_set", Platform: "pc", Part: "volt_prime_chassis",
				Quantity: 1, UnitCost: engine.Some(10), PriceSource: engine.PriceSourceBuy,
				SellDepth: engine.Some(9), AsOfDate: "2026-03-10",
			},
			{
				Set: "volt_prime_set", Platform: "pc", Part: "volt_prime_systems",
				Quantity: 2, PriceSource: "",
			},
		},
	}
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestWriteIndex_ValuesAndEmptyCells(t *testing.T) {
	w, dir := quietWriter(t)
	if err := w.WriteIndex(sampleResult().Index); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}

	rows := readCSVFile(t, filepath.Join(dir, "sets_index.csv"))
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "set_url" || rows[0][len(rows[0])-1] != "kpi_score_0_100" {
		t.Errorf("header = %v", rows[0])
	}
	r := rows[1]
	if r[0] != "volt_prime_set" || r[2] != "2026-03-10" {
		t.Errorf("row = %v", r)
	}
	if r[3] != "35" || r[4] != "20" || r[5] != "15" || r[6] != "75" {
		t.Errorf("price columns = %v", r[3:7])
	}
	if r[7] != "" {
		t.Errorf("missing buy depth rendered as %q, want empty", r[7])
	}
	if r[8] != "6" || r[9] != "4" || r[10] != "60" {
		t.Errorf("depth/kpi columns = %v", r[8:11])
	}
	if r[12] != "42.5" || r[13] != "0.8" || r[14] != "80" {
		t.Errorf("kpi columns = %v", r[12:])
	}
}

func TestWriteIndex_EmptyStillHeadered(t *testing.T) {
	w, dir := quietWriter(t)
	if err := w.WriteIndex(nil); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}
	rows := readCSVFile(t, filepath.Join(dir, "sets_index.csv"))
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}

func TestWriteSeries_FilePerSet(t *testing.T) {
	w, dir := quietWriter(t)
	if err := w.WriteSeries(sampleResult().Series); err != nil {
		t.Fatalf("WriteSeries: %v", err)
	}
	rows := readCSVFile(t, filepath.Join(dir, "timeseries", "volt_prime_set__set.csv"))
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[1][2] != "2026-03-10" || rows[1][7] != "20" {
		t.Errorf("series row = %v", rows[1])
	}
}

func TestWriteParts_SourceTagAndMissingAsOf(t *testing.T) {
	w, dir := quietWriter(t)
	if err := w.WriteParts(sampleResult().PartsLatest); err != nil {
		t.Fatalf("WriteParts: %v", err)
	}
	rows := readCSVFile(t, filepath.Join(dir, "parts_latest_by_set.csv"))
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][4] != "10" || rows[1][5] != "BUY" || rows[1][7] != "2026-03-10" {
		t.Errorf("priced part = %v", rows[1])
	}
	// Part with no history: cost, source, depth, and date all empty.
	if rows[2][4] != "" || rows[2][5] != "" || rows[2][6] != "" || rows[2][7] != "" {
		t.Errorf("unpriced part = %v", rows[2])
	}
}

func TestWriteXLSX_IndexSheet(t *testing.T) {
	w, dir := quietWriter(t)
	if err := w.WriteXLSX(sampleResult().Index); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenFile(filepath.Join(dir, "sets_index.xlsx"))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("Index", "A1"); got != "set_url" {
		t.Errorf("A1 = %q", got)
	}
	if got, _ := f.GetCellValue("Index", "A2"); got != "volt_prime_set" {
		t.Errorf("A2 = %q", got)
	}
	if got, _ := f.GetCellValue("Index", "D2"); got != "35" {
		t.Errorf("D2 = %q, want 35", got)
	}
	// Missing buy depth stays a blank cell.
	if got, _ := f.GetCellValue("Index", "H2"); got != "" {
		t.Errorf("H2 = %q, want empty", got)
	}
}

func TestWriteAll_ProducesEveryArtifact(t *testing.T) {
	w, dir := quietWriter(t)
	if err := w.WriteAll(sampleResult()); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	for _, name := range []string{
		"sets_index.csv",
		"parts_latest_by_set.csv",
		"sets_index.xlsx",
		filepath.Join("timeseries", "volt_prime_set__set.csv"),
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
}
