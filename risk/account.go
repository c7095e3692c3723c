package risk

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrAccountInvariant is fatal: it means the risk gate itself is broken
// (for example the open-position count escaping its configured limit) and
// the run must abort.
var ErrAccountInvariant = errors.New("account invariant violated")

// Account is the single mutable account state for a run. The Governor
// and the trade settlement path are its only writers; everything else
// reads point-in-time snapshots.
type Account struct {
	mu sync.Mutex

	equity         decimal.Decimal
	dayStartEquity decimal.Decimal
	realizedToday  decimal.Decimal

	openPositions     int
	tradesToday       int
	consecutiveLosses int

	halted     bool
	haltReason Reason
	stopped    bool // external stop signal, survives session rollover

	volatility float64
}

// Snapshot is a read-only copy of the account at one instant.
type Snapshot struct {
	Equity            decimal.Decimal
	DayStartEquity    decimal.Decimal
	RealizedToday     decimal.Decimal
	OpenPositions     int
	TradesToday       int
	ConsecutiveLosses int
	Halted            bool
	HaltReason        Reason
}

func NewAccount(equity decimal.Decimal) *Account {
	return &Account{
		equity:         equity,
		dayStartEquity: equity,
	}
}

func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Equity:            a.equity,
		DayStartEquity:    a.dayStartEquity,
		RealizedToday:     a.realizedToday,
		OpenPositions:     a.openPositions,
		TradesToday:       a.tradesToday,
		ConsecutiveLosses: a.consecutiveLosses,
		Halted:            a.halted || a.stopped,
		HaltReason:        a.haltReason,
	}
}

// Equity returns the current account equity.
func (a *Account) Equity() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.equity
}

// StartSession resets the daily counters and any session-scoped halt.
// The consecutive-loss streak is daily state too: a new session starts
// with a clean slate, otherwise a tripped limit could never be lifted
// on a day with no wins. An external stop stays in force.
func (a *Account) StartSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dayStartEquity = a.equity
	a.realizedToday = decimal.Zero
	a.tradesToday = 0
	a.consecutiveLosses = 0
	a.halted = false
	a.haltReason = ""
}

// Mark sets the equity from an explicit account-value poll. Everything
// else moves equity only through settlement.
func (a *Account) Mark(equity decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.equity = equity
}

// SetVolatility records the current volatility proxy used by the
// circuit-breaker ceiling check.
func (a *Account) SetVolatility(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volatility = v
}

// Stop refuses all new entries for the rest of the run. Open positions
// keep being managed to a normal exit.
func (a *Account) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
}
