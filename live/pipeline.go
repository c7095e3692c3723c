package live

import (
	"context"

	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/strategy"
)

// pipeline is one symbol's bar-at-a-time decision path: range tracking,
// breakout detection and entry. It is owned by a single goroutine; all
// shared state lives behind the engine's account, governor and book.
type pipeline struct {
	e      *Engine
	symbol string

	sess    market.Session
	sessKey string
	tracker *strategy.RangeTracker
	gen     *strategy.SignalGen

	last market.Bar
	seen bool
}

func (p *pipeline) step(ctx context.Context, b market.Bar) {
	sess := p.e.opts.Clock.SessionFor(b.Time)
	if key := sess.Key(); key != p.sessKey {
		p.sess = sess
		p.sessKey = key
		p.tracker = strategy.NewRangeTracker(p.symbol, sess)
		p.gen = nil
		p.e.startSession(key)
	}

	// Bars must be strictly increasing per symbol; a stale bar is a data
	// gap, skipped without touching any state.
	if p.seen && !b.Time.After(p.last.Time) {
		p.e.log.Warn().
			Str("symbol", p.symbol).
			Time("bar_time", b.Time).
			Str("reason", "DATA_GAP").
			Msg("stale bar skipped")
		return
	}
	p.last, p.seen = b, true

	// Exits are evaluated before any new entry decision on the same bar.
	p.e.book.OnBar(b)

	if rng, frozen := p.tracker.Observe(b); frozen {
		p.gen = strategy.NewSignalGen(rng, p.sess, p.e.log)
	}
	if p.gen == nil {
		return
	}
	if sig, fired := p.gen.OnBar(b); fired {
		p.e.enter(ctx, sig)
	}
}
