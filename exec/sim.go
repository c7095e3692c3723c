package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/risk"
	"github.com/rustyeddy/orb/trade"
)

// Simulator fills accepted intents at the signal's trigger price with no
// entry slippage; slippage is modeled only through the commission
// constants. Position ids are sequential so repeated replays produce
// byte-identical trade logs. Safe for concurrent use: paper-mode live
// runs submit from one goroutine per symbol.
type Simulator struct {
	profile risk.Profile
	clock   market.Clock
	log     zerolog.Logger

	mu  sync.Mutex
	seq int64
}

func NewSimulator(p risk.Profile, clock market.Clock, log zerolog.Logger) *Simulator {
	return &Simulator{profile: p, clock: clock, log: log}
}

func (s *Simulator) Submit(_ context.Context, it Intent) (*trade.Position, error) {
	if it.Shares <= 0 {
		return nil, fmt.Errorf("%w: sizing produced %d shares for %s",
			ErrExecutionRejected, it.Shares, it.Signal.Symbol)
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("T-%06d", s.seq)
	s.mu.Unlock()

	sess := s.clock.SessionFor(it.Signal.Time)

	pos := trade.NewOpen(id, it.Signal.Symbol, it.Shares,
		decimal.NewFromFloat(it.Signal.Trigger), it.Signal.Time,
		s.profile, sess.Close)

	s.log.Info().
		Str("id", id).
		Str("symbol", pos.Symbol).
		Int64("shares", pos.Shares).
		Str("entry", pos.EntryPrice.String()).
		Str("stop", pos.StopPrice.String()).
		Str("target", pos.TargetPrice.String()).
		Msg("simulated fill")
	return pos, nil
}
