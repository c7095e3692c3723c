package risk

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Reason codes a circuit-breaker rejection.
type Reason string

const (
	RejectDailyLossLimit    Reason = "DAILY_LOSS_LIMIT"
	RejectConsecutiveLosses Reason = "CONSECUTIVE_LOSSES"
	RejectPositionLimit     Reason = "POSITION_LIMIT"
	RejectDailyTradeLimit   Reason = "DAILY_TRADE_LIMIT"
	RejectVolatilityCeiling Reason = "VOLATILITY_CEILING"
	RejectHalted            Reason = "HALTED"
)

// Governor is the account-wide gate evaluated before every entry
// attempt. Admit and the position-count reservation run in one critical
// section, so two symbols can never both pass a nearly-full position
// limit.
type Governor struct {
	profile Profile
	acct    *Account
	log     zerolog.Logger
}

func NewGovernor(p Profile, acct *Account, log zerolog.Logger) *Governor {
	return &Governor{profile: p, acct: acct, log: log}
}

// Admit runs every gate check and, if all pass, reserves a position slot
// and a daily trade before releasing the lock. The caller must call
// Release if the subsequent dispatch fails.
func (g *Governor) Admit(symbol string) (Reason, error) {
	a := g.acct
	a.mu.Lock()
	defer a.mu.Unlock()

	if reason := g.rejectionLocked(); reason != "" {
		g.log.Info().
			Str("symbol", symbol).
			Str("reason", string(reason)).
			Msg("entry rejected")
		return reason, nil
	}

	a.openPositions++
	a.tradesToday++

	if a.openPositions > g.profile.MaxSimultaneousPositions {
		return "", fmt.Errorf("%w: open positions %d exceed max %d",
			ErrAccountInvariant, a.openPositions, g.profile.MaxSimultaneousPositions)
	}
	return "", nil
}

func (g *Governor) rejectionLocked() Reason {
	a := g.acct
	p := g.profile

	switch {
	case a.stopped:
		return RejectHalted
	case a.halted:
		return a.haltReason
	case a.consecutiveLosses >= p.ConsecutiveLossLimit:
		return RejectConsecutiveLosses
	case a.openPositions >= p.MaxSimultaneousPositions:
		return RejectPositionLimit
	case a.tradesToday >= p.MaxDailyTrades:
		return RejectDailyTradeLimit
	case a.volatility > p.VolatilityCeiling:
		return RejectVolatilityCeiling
	}
	return ""
}

// Release returns a reservation after a failed dispatch: no position was
// created, so neither the slot nor the daily trade counts.
func (g *Governor) Release() error {
	a := g.acct
	a.mu.Lock()
	defer a.mu.Unlock()

	a.openPositions--
	a.tradesToday--
	if a.openPositions < 0 || a.tradesToday < 0 {
		return fmt.Errorf("%w: release without matching admit", ErrAccountInvariant)
	}
	return nil
}

// Settle applies one CLOSED position's realized PnL to the account:
// equity and daily PnL move, the consecutive-loss counter updates, and
// the daily loss limit latches a halt for the rest of the session.
func (g *Governor) Settle(pnl decimal.Decimal) error {
	a := g.acct
	a.mu.Lock()
	defer a.mu.Unlock()

	a.openPositions--
	if a.openPositions < 0 {
		return fmt.Errorf("%w: settle without open position", ErrAccountInvariant)
	}

	a.equity = a.equity.Add(pnl)
	a.realizedToday = a.realizedToday.Add(pnl)

	if pnl.IsNegative() {
		a.consecutiveLosses++
	} else {
		a.consecutiveLosses = 0
	}

	limit := a.dayStartEquity.Mul(decimal.NewFromFloat(g.profile.DailyLossLimitPct)).Neg()
	if !a.halted && a.realizedToday.Cmp(limit) <= 0 {
		a.halted = true
		a.haltReason = RejectDailyLossLimit
		g.log.Warn().
			Str("realized_today", a.realizedToday.String()).
			Str("limit", limit.String()).
			Msg("daily loss limit reached, new entries halted for the session")
	}
	return nil
}
