package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/orb/market"
)

// ErrNoBars is returned when a dataset contains no usable rows.
var ErrNoBars = errors.New("no bars in dataset")

// LoadCSV reads historical bars from CSV rows:
//
//	symbol,time,open,high,low,close,volume,trade_count
//
// where time is RFC3339 or "2006-01-02 15:04" in the given location.
// A header row is allowed; short rows are skipped. The result is sorted
// by timestamp (stable, so same-timestamp bars keep file order) ready
// for Runner.Run.
func LoadCSV(path string, loc *time.Location) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var bars []market.Bar
	sawFirst := false
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		// Allow a single header row.
		if !sawFirst {
			sawFirst = true
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "symbol") {
				continue
			}
		}
		if len(row) < 7 {
			continue
		}

		b, err := parseBarRow(row, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		bars = append(bars, b)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBars, path)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	return bars, nil
}

func parseBarRow(row []string, loc *time.Location) (market.Bar, error) {
	ts, err := parseBarTime(strings.TrimSpace(row[1]), loc)
	if err != nil {
		return market.Bar{}, err
	}

	var vals [4]float64
	for i, col := range row[2:6] {
		v, err := strconv.ParseFloat(strings.TrimSpace(col), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad price %q: %w", col, err)
		}
		vals[i] = v
	}

	volume, err := strconv.ParseFloat(strings.TrimSpace(row[6]), 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("bad volume %q: %w", row[6], err)
	}

	trades := 0
	if len(row) > 7 {
		trades, err = strconv.Atoi(strings.TrimSpace(row[7]))
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad trade count %q: %w", row[7], err)
		}
	}

	return market.Bar{
		Symbol:     strings.TrimSpace(row[0]),
		Time:       ts,
		Open:       vals[0],
		High:       vals[1],
		Low:        vals[2],
		Close:      vals[3],
		Volume:     volume,
		TradeCount: trades,
	}, nil
}

func parseBarTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}
