package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/pumpshort/internal/obslog"
	"github.com/sawpanic/pumpshort/internal/pumpdetector"
	"github.com/sawpanic/pumpshort/internal/snapshotstore"
)

var replayFile string

var backtestReplayCmd = &cobra.Command{
	Use:   "backtest-replay",
	Short: "Feed a CSV of historical price points through the pump detector",
	Long: `Replays a CSV file (columns: symbol,timestamp,price,volume, RFC3339
timestamps) through the Snapshot Store and Pump Detector, in timestamp
order, printing every detected pump event. This is a smoke-testing aid
for the detector's thresholds, not a trading backtest harness.`,
	RunE: runBacktestReplay,
}

func init() {
	backtestReplayCmd.Flags().StringVar(&replayFile, "file", "", "CSV file to replay (required)")
	_ = backtestReplayCmd.MarkFlagRequired("file")
}

type replayRow struct {
	symbol string
	at     time.Time
	price  float64
	volume float64
}

func loadReplayRows(path string) ([]replayRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse replay csv: %w", err)
	}

	rows := make([]replayRow, 0, len(records))
	for i, rec := range records {
		if len(rec) < 4 {
			return nil, fmt.Errorf("row %d: expected 4 columns, got %d", i, len(rec))
		}
		at, err := time.Parse(time.RFC3339, rec[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad timestamp %q: %w", i, rec[1], err)
		}
		price, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad price %q: %w", i, rec[2], err)
		}
		volume, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad volume %q: %w", i, rec[3], err)
		}
		rows = append(rows, replayRow{symbol: rec[0], at: at, price: price, volume: volume})
	}
	return rows, nil
}

func runBacktestReplay(cmd *cobra.Command, args []string) error {
	rows, err := loadReplayRows(replayFile)
	if err != nil {
		return err
	}

	store := snapshotstore.New(snapshotstore.DefaultConfig())
	progress := obslog.NewProgress("replay", len(rows), obslog.DefaultProgressConfig())

	detected := 0
	for i, row := range rows {
		store.Insert(row.symbol, snapshotstore.Snapshot{Timestamp: row.at, Price: row.price, Volume: row.volume})

		recentFast := store.Recent(row.symbol, 5*time.Minute, row.at)
		recentElite := store.Recent(row.symbol, 20*time.Minute, row.at)
		if event := pumpdetector.Detect(row.symbol, recentFast, recentElite, row.at); event != nil {
			detected++
			fmt.Printf("\n%s %s pump=%.2f%% elapsed=%.1fmin start=%.4f peak=%.4f current=%.4f at=%s\n",
				event.Symbol, event.Kind, event.PumpPct, event.ElapsedMinutes,
				event.PriceStart, event.PricePeak, event.CurrentPrice, event.DetectedAt.Format(time.RFC3339))
		}
		progress.Update(i + 1)
	}
	progress.FinishWithMessage(fmt.Sprintf("%d pump events detected across %d rows", detected, len(rows)))
	return nil
}
