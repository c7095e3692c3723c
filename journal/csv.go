package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVJournal writes the trade log as a flat CSV, one row per closed
// position. Rows are flushed on every record so a crashed run keeps its
// log.
type CSVJournal struct {
	w *csv.Writer
	f *os.File
}

func NewCSV(path string) (*CSVJournal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"trade_id", "symbol", "shares",
		"entry_time", "entry_price", "exit_time", "exit_price",
		"exit_reason", "pnl", "commission", "hold_minutes",
	}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{w: w, f: f}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.w.Write([]string{
		t.TradeID,
		t.Symbol,
		strconv.FormatInt(t.Shares, 10),
		t.EntryTime.Format(time.RFC3339),
		t.EntryPrice.String(),
		t.ExitTime.Format(time.RFC3339),
		t.ExitPrice.String(),
		t.ExitReason,
		t.PnL.String(),
		t.Commission.String(),
		strconv.FormatInt(t.HoldMins, 10),
	})
	j.w.Flush()
	return j.w.Error()
}

func (j *CSVJournal) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}
