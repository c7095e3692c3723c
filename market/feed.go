package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrDataGap marks a feed record that is not strictly newer than the last
// bar seen for its symbol. The record is skipped, not fatal.
var ErrDataGap = errors.New("data gap")

// FeedRecord is the wire shape delivered by the data-feed collaborator:
// one aggregate per minute per symbol, epoch-millisecond timestamp.
type FeedRecord struct {
	Volume     float64 `json:"v"`
	VWAP       float64 `json:"vw"`
	Open       float64 `json:"o"`
	Close      float64 `json:"c"`
	High       float64 `json:"h"`
	Low        float64 `json:"l"`
	TimeMillis int64   `json:"t"`
	TradeCount int     `json:"n"`
}

// Feed normalizes raw feed records into canonical Bars and enforces
// per-symbol time ordering. Records at or before the last seen bar for a
// symbol are rejected with ErrDataGap.
type Feed struct {
	loc  *time.Location
	last map[string]time.Time
	log  zerolog.Logger
}

func NewFeed(loc *time.Location, log zerolog.Logger) *Feed {
	return &Feed{
		loc:  loc,
		last: make(map[string]time.Time),
		log:  log,
	}
}

// Normalize converts a feed record for symbol into a Bar, truncated to
// minute resolution in the exchange's location.
func (f *Feed) Normalize(symbol string, rec FeedRecord) (Bar, error) {
	ts := time.UnixMilli(rec.TimeMillis).In(f.loc).Truncate(time.Minute)

	if prev, ok := f.last[symbol]; ok && !ts.After(prev) {
		f.log.Warn().
			Str("symbol", symbol).
			Time("bar_time", ts).
			Time("last_time", prev).
			Str("reason", "DATA_GAP").
			Msg("feed record out of order, skipped")
		return Bar{}, fmt.Errorf("%w: %s bar %s not after %s",
			ErrDataGap, symbol, ts.Format(time.RFC3339), prev.Format(time.RFC3339))
	}
	f.last[symbol] = ts

	return Bar{
		Symbol:     symbol,
		Time:       ts,
		Open:       rec.Open,
		High:       rec.High,
		Low:        rec.Low,
		Close:      rec.Close,
		Volume:     rec.Volume,
		TradeCount: rec.TradeCount,
	}, nil
}
