// Package export writes the analytics result to its published artifacts:
// three CSV tables under the analytics directory plus an XLSX rendering of
// the index for spreadsheet consumers. Missing values become empty cells,
// never zero.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"primewatch/internal/engine"
)

var indexHeader = []string{
	"set_url", "platform", "latest_date",
	"set_sell_med", "parts_cost_buy", "margin", "roi_pct",
	"buy_depth_med", "min_part_eff_depth",
	"daily_volume_cap", "kpi_daily_potential", "opportunity_score",
	"kpi_30d_avg", "kpi_score_01", "kpi_score_0_100",
}

var seriesHeader = []string{
	"set_url", "platform", "date",
	"buy_med", "sell_med", "buy_depth_med", "sell_depth_med",
	"parts_cost_buy", "min_part_eff_depth", "margin", "roi_pct",
	"opportunity_score", "daily_volume_cap", "kpi_daily_potential",
}

var partsHeader = []string{
	"set_url", "platform", "part_url", "quantity_for_set",
	"unit_cost_latest", "price_source", "sell_depth_med_latest", "latest_date_part",
}

// Writer publishes analytics results under one output directory.
type Writer struct {
	dir string
	log *logrus.Logger
}

// New creates a writer rooted at dir (the analytics output directory).
func New(dir string, log *logrus.Logger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{dir: dir, log: log}
}

// WriteAll publishes every artifact of one analytics run.
func (w *Writer) WriteAll(res *engine.Result) error {
	if err := w.WriteIndex(res.Index); err != nil {
		return err
	}
	if err := w.WriteSeries(res.Series); err != nil {
		return err
	}
	if err := w.WriteParts(res.PartsLatest); err != nil {
		return err
	}
	if err := w.WriteXLSX(res.Index); err != nil {
		return err
	}
	w.log.WithFields(logrus.Fields{
		"sets":   len(res.Index),
		"series": len(res.Series),
		"parts":  len(res.PartsLatest),
	}).Info("analytics artifacts written")
	return nil
}

// WriteIndex writes sets_index.csv: one row per (set, platform), latest day.
func (w *Writer) WriteIndex(index []engine.SetIndexRecord) error {
	rows := make([][]string, 0, len(index))
	for _, r := range index {
		rows = append(rows, []string{
			r.Set, r.Platform, r.Date,
			r.SellMed.String(), r.PartsCost.String(), r.Margin.String(), r.ROIPct.String(),
			r.BuyDepthMed.String(), ftoa(r.BottleneckDepth),
			ftoa(r.DailyVolumeCap), ftoa(r.KPIDailyPotential), r.OpportunityScore.String(),
			r.KPI30Avg.String(), r.KPI01.String(), r.KPI0100.String(),
		})
	}
	return writeCSV(filepath.Join(w.dir, "sets_index.csv"), indexHeader, rows)
}

// WriteSeries writes timeseries/<set>__set.csv for every set.
func (w *Writer) WriteSeries(series map[string][]engine.SetDailyRecord) error {
	dir := filepath.Join(w.dir, "timeseries")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir timeseries: %w", err)
	}
	for set, days := range series {
		rows := make([][]string, 0, len(days))
		for _, r := range days {
			rows = append(rows, []string{
				r.Set, r.Platform, r.Date,
				r.BuyMed.String(), r.SellMed.String(), r.BuyDepthMed.String(), r.SellDepthMed.String(),
				r.PartsCost.String(), ftoa(r.BottleneckDepth), r.Margin.String(), r.ROIPct.String(),
				r.OpportunityScore.String(), ftoa(r.DailyVolumeCap), ftoa(r.KPIDailyPotential),
			})
		}
		path := filepath.Join(dir, set+"__set.csv")
		if err := writeCSV(path, seriesHeader, rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteParts writes parts_latest_by_set.csv: the as-of parts breakdown.
func (w *Writer) WriteParts(parts []engine.PartLatestRecord) error {
	rows := make([][]string, 0, len(parts))
	for _, r := range parts {
		rows = append(rows, []string{
			r.Set, r.Platform, r.Part, strconv.Itoa(r.Quantity),
			r.UnitCost.String(), r.PriceSource, r.SellDepth.String(), r.AsOfDate,
		})
	}
	return writeCSV(filepath.Join(w.dir, "parts_latest_by_set.csv"), partsHeader, rows)
}

// WriteXLSX renders the index table as sets_index.xlsx with a single
// "Index" sheet mirroring sets_index.csv.
func (w *Writer) WriteXLSX(index []engine.SetIndexRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Index"
	f.SetSheetName(f.GetSheetName(0), sheet)

	header := make([]interface{}, len(indexHeader))
	for i, h := range indexHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}

	for i, r := range index {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.Set, r.Platform, r.Date,
			xcell(r.SellMed), xcell(r.PartsCost), xcell(r.Margin), xcell(r.ROIPct),
			xcell(r.BuyDepthMed), r.BottleneckDepth,
			r.DailyVolumeCap, r.KPIDailyPotential, xcell(r.OpportunityScore),
			xcell(r.KPI30Avg), xcell(r.KPI01), xcell(r.KPI0100),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	path := filepath.Join(w.dir, "sets_index.xlsx")
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// xcell maps a possibly-missing float to its spreadsheet cell value:
// missing stays a blank cell.
func xcell(n engine.NullFloat) interface{} {
	if !n.Valid {
		return nil
	}
	return n.Float64
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeCSV writes a headered CSV, header-only when rows is empty.
func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
