package market

import "time"

// Bar is one minute of trading for a single symbol, timestamped in
// exchange-local time. Bars are immutable once produced; per symbol they
// are strictly increasing in time.
type Bar struct {
	Symbol     string
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	TradeCount int
}

// SessionDate returns the bar's trading day as YYYY-MM-DD.
func (b Bar) SessionDate() string {
	return b.Time.Format("2006-01-02")
}
