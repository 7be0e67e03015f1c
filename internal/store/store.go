// Package store persists raw marketplace snapshots as rotating monthly
// CSV tables under data/YYYY-MM/, and loads the accumulated history back
// for the analytics pass. Raw tables only ever grow: every append merges
// the month's previous rows, dedups on the table's natural key, and keeps
// a one-generation backup of the file it replaced.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"primewatch/internal/engine"
)

// OrderbookRow is one order-book snapshot as written to disk.
type OrderbookRow struct {
	Item         string
	TS           time.Time
	TopBuyAvg    engine.NullFloat
	BuyCount     int
	TopSellAvg   engine.NullFloat
	SellCount    int
	Platform     string
	WeeklyVolume int // eligibility estimate at snapshot time
}

// StatsRow is one official 48h statistics bucket as written to disk.
type StatsRow struct {
	Item     string
	Bucket   string
	Volume   int
	Min      engine.NullFloat
	Max      engine.NullFloat
	Avg      engine.NullFloat
	Median   engine.NullFloat
	Platform string
}

// ComponentRow is one set→part membership observation as written to disk.
type ComponentRow struct {
	Set      string
	Part     string
	Quantity int
	Platform string
}

var (
	orderbookHeader  = []string{"item_url", "ts", "top_buy_avg", "buy_count", "top_sell_avg", "sell_count", "platform", "weekly_volume_est"}
	statsHeader      = []string{"item_url", "ts_bucket", "volume", "min", "max", "avg", "median", "platform"}
	componentsHeader = []string{"set_url", "part_url", "quantity_for_set", "platform"}
)

// Store reads and writes the raw snapshot tables under one data directory.
type Store struct {
	dataDir string
}

// New creates a store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// monthPaths returns the current and backup file paths for a table in the
// month of now.
func (s *Store) monthPaths(table string, now time.Time) (cur, old string) {
	month := now.UTC().Format("2006-01")
	dir := filepath.Join(s.dataDir, month)
	cur = filepath.Join(dir, fmt.Sprintf("%s_%s.csv", table, month))
	old = filepath.Join(dir, fmt.Sprintf("%s_%s_old.csv", table, month))
	return cur, old
}

// AppendOrderbook merges rows into this month's orderbook table,
// deduplicating on (item, ts, platform).
func (s *Store) AppendOrderbook(now time.Time, rows []OrderbookRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Item,
			r.TS.UTC().Format(time.RFC3339),
			r.TopBuyAvg.String(),
			strconv.Itoa(r.BuyCount),
			r.TopSellAvg.String(),
			strconv.Itoa(r.SellCount),
			r.Platform,
			strconv.Itoa(r.WeeklyVolume),
		})
	}
	cur, old := s.monthPaths("orderbook", now)
	return rotateAppend(cur, old, orderbookHeader, records, []int{0, 1, 6})
}

// AppendStats merges rows into this month's stats48h table, deduplicating
// on (item, bucket, platform).
func (s *Store) AppendStats(now time.Time, rows []StatsRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Item,
			r.Bucket,
			strconv.Itoa(r.Volume),
			r.Min.String(),
			r.Max.String(),
			r.Avg.String(),
			r.Median.String(),
			r.Platform,
		})
	}
	cur, old := s.monthPaths("stats48h", now)
	return rotateAppend(cur, old, statsHeader, records, []int{0, 1, 7})
}

// AppendComponents merges rows into this month's set_components table,
// deduplicating on (set, part, platform).
func (s *Store) AppendComponents(now time.Time, rows []ComponentRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Set,
			r.Part,
			strconv.Itoa(r.Quantity),
			r.Platform,
		})
	}
	cur, old := s.monthPaths("set_components", now)
	return rotateAppend(cur, old, componentsHeader, records, []int{0, 1, 3})
}

// rotateAppend implements the monthly rotation: drop the previous backup,
// read the current file's rows, move it aside as the new backup, then
// write current = dedup(previous rows + new rows). The previous rows come
// first so the earliest observation of a key wins.
func rotateAppend(cur, old string, header []string, newRows [][]string, keyCols []int) error {
	os.Remove(old)

	var prev [][]string
	if _, err := os.Stat(cur); err == nil {
		prev = readRecords(cur, len(header))
		if err := os.Rename(cur, old); err != nil {
			return fmt.Errorf("rotate %s: %w", cur, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(cur), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", cur, err)
	}

	seen := make(map[string]bool)
	combined := make([][]string, 0, len(prev)+len(newRows))
	for _, row := range append(prev, newRows...) {
		key := rowKey(row, keyCols)
		if seen[key] {
			continue
		}
		seen[key] = true
		combined = append(combined, row)
	}

	f, err := os.Create(cur)
	if err != nil {
		return fmt.Errorf("create %s: %w", cur, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(combined); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func rowKey(row []string, cols []int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = row[c]
	}
	return strings.Join(parts, "\x00")
}

// readRecords reads a CSV file's data rows, skipping the header and any
// row with the wrong field count. Unreadable or empty files yield nil:
// one corrupt monthly file must not sink the whole history.
func readRecords(path string, fields int) [][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil || len(all) < 2 {
		return nil
	}

	var out [][]string
	for _, row := range all[1:] {
		if len(row) != fields {
			continue
		}
		out = append(out, row)
	}
	return out
}

// loadTable concatenates every month's rows for a table, oldest file
// first. Backup generations are skipped: the current file of a month
// supersedes its backup.
func (s *Store) loadTable(table string, fields int) [][]string {
	pattern := filepath.Join(s.dataDir, "*", table+"_*.csv")
	files, _ := filepath.Glob(pattern)
	sort.Strings(files)

	var out [][]string
	for _, f := range files {
		if strings.HasSuffix(f, "_old.csv") {
			continue
		}
		out = append(out, readRecords(f, fields)...)
	}
	return out
}

// LoadOrderbook returns the full accumulated order-book history as
// analytics input. Rows with malformed timestamps or counts are skipped;
// missing prices stay missing.
func (s *Store) LoadOrderbook() []engine.OrderSnapshot {
	rows := s.loadTable("orderbook", len(orderbookHeader))
	out := make([]engine.OrderSnapshot, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			continue
		}
		buyCount, err := strconv.Atoi(row[3])
		if err != nil {
			continue
		}
		sellCount, err := strconv.Atoi(row[5])
		if err != nil {
			continue
		}
		out = append(out, engine.OrderSnapshot{
			Item:       row[0],
			TS:         ts,
			TopBuyAvg:  engine.ParseNullFloat(row[2]),
			BuyCount:   buyCount,
			TopSellAvg: engine.ParseNullFloat(row[4]),
			SellCount:  sellCount,
			Platform:   row[6],
		})
	}
	return out
}

// LoadComponents returns the full accumulated membership history as
// analytics input. Rows with a malformed quantity are skipped.
func (s *Store) LoadComponents() []engine.ComponentLink {
	rows := s.loadTable("set_components", len(componentsHeader))
	out := make([]engine.ComponentLink, 0, len(rows))
	for _, row := range rows {
		qty, err := strconv.Atoi(row[2])
		if err != nil {
			continue
		}
		out = append(out, engine.ComponentLink{
			Set:      row[0],
			Part:     row[1],
			Quantity: qty,
			Platform: row[3],
		})
	}
	return out
}
