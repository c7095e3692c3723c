package trade

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/risk"
)

type Status string

const (
	Pending Status = "PENDING"
	Open    Status = "OPEN"
	Closed  Status = "CLOSED"
)

type ExitReason string

const (
	ExitStop   ExitReason = "STOP"
	ExitTarget ExitReason = "TARGET"
	ExitTime   ExitReason = "TIME"
	ExitForced ExitReason = "FORCED"
)

// Commission is the round-trip fee model: shares * per-share fee plus a
// base fee, applied once per closed position.
type Commission struct {
	PerShare decimal.Decimal
	Base     decimal.Decimal
}

func (c Commission) RoundTrip(shares int64) decimal.Decimal {
	return c.PerShare.Mul(decimal.NewFromInt(shares)).Add(c.Base)
}

// Position is one trade's lifecycle: PENDING for the instant between
// sizing and dispatch acceptance, OPEN while managed bar by bar, CLOSED
// exactly once and immutable afterwards.
type Position struct {
	ID     string
	Symbol string
	Shares int64

	EntryTime   time.Time
	EntryPrice  decimal.Decimal
	StopPrice   decimal.Decimal
	TargetPrice decimal.Decimal
	Deadline    time.Time

	Status     Status
	ExitTime   time.Time
	ExitPrice  decimal.Decimal
	ExitReason ExitReason
	Commission decimal.Decimal
	PnL        decimal.Decimal
}

// NewOpen builds an OPEN position from an accepted fill. Stop and target
// are fixed brackets off the entry price; the deadline is the session
// close, shortened by the profile's max hold if set.
func NewOpen(id, symbol string, shares int64, entry decimal.Decimal, entryTime time.Time, p risk.Profile, sessionClose time.Time) *Position {
	deadline := sessionClose
	if p.MaxHoldMinutes > 0 {
		held := entryTime.Add(time.Duration(p.MaxHoldMinutes) * time.Minute)
		if held.Before(deadline) {
			deadline = held
		}
	}
	return &Position{
		ID:          id,
		Symbol:      symbol,
		Shares:      shares,
		EntryTime:   entryTime,
		EntryPrice:  entry,
		StopPrice:   entry.Mul(decimal.NewFromFloat(1 + p.StopLossPct)),
		TargetPrice: entry.Mul(decimal.NewFromFloat(1 + p.TakeProfitPct)),
		Deadline:    deadline,
		Status:      Open,
	}
}

// OnBar evaluates exits for one bar in fixed priority order: stop, then
// target, then time. A bar that touches both stop and target resolves as
// a stop, the conservative read of intrabar ambiguity. Returns true when
// the bar closed the position.
func (p *Position) OnBar(b market.Bar, c Commission) bool {
	if p.Status != Open || b.Symbol != p.Symbol {
		return false
	}
	// Entry-bar and stale bars are never exit candidates.
	if !b.Time.After(p.EntryTime) {
		return false
	}

	switch {
	case decimal.NewFromFloat(b.Low).Cmp(p.StopPrice) <= 0:
		p.close(p.StopPrice, b.Time, ExitStop, c)
	case decimal.NewFromFloat(b.High).Cmp(p.TargetPrice) >= 0:
		p.close(p.TargetPrice, b.Time, ExitTarget, c)
	case !b.Time.Before(p.Deadline):
		p.close(decimal.NewFromFloat(b.Close), b.Time, ExitTime, c)
	default:
		return false
	}
	return true
}

// CloseAt closes the position at an externally chosen price: end of a
// replay dataset or a forced live shutdown.
func (p *Position) CloseAt(price decimal.Decimal, t time.Time, reason ExitReason, c Commission) bool {
	if p.Status != Open {
		return false
	}
	p.close(price, t, reason, c)
	return true
}

func (p *Position) close(price decimal.Decimal, t time.Time, reason ExitReason, c Commission) {
	p.Status = Closed
	p.ExitTime = t
	p.ExitPrice = price
	p.ExitReason = reason
	p.Commission = c.RoundTrip(p.Shares)
	p.PnL = price.Sub(p.EntryPrice).
		Mul(decimal.NewFromInt(p.Shares)).
		Sub(p.Commission)
}

// HoldDuration is the time between entry and exit.
func (p *Position) HoldDuration() time.Duration {
	if p.Status != Closed {
		return 0
	}
	return p.ExitTime.Sub(p.EntryTime)
}
