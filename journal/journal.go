package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/orb/trade"
)

// TradeRecord is one CLOSED position as written to the trade log.
type TradeRecord struct {
	TradeID    string
	Symbol     string
	Shares     int64
	EntryTime  time.Time
	EntryPrice decimal.Decimal
	ExitTime   time.Time
	ExitPrice  decimal.Decimal
	ExitReason string
	PnL        decimal.Decimal
	Commission decimal.Decimal
	HoldMins   int64
}

// FromPosition converts a CLOSED position into its log record.
func FromPosition(p *trade.Position) TradeRecord {
	return TradeRecord{
		TradeID:    p.ID,
		Symbol:     p.Symbol,
		Shares:     p.Shares,
		EntryTime:  p.EntryTime,
		EntryPrice: p.EntryPrice,
		ExitTime:   p.ExitTime,
		ExitPrice:  p.ExitPrice,
		ExitReason: string(p.ExitReason),
		PnL:        p.PnL,
		Commission: p.Commission,
		HoldMins:   int64(p.HoldDuration() / time.Minute),
	}
}

type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}

// Nop discards every record. Useful for tests and dry runs.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) Close() error                  { return nil }
