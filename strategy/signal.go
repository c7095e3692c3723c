package strategy

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/orb/market"
)

// Direction of a signal. The strategy is long-only: it buys breakouts
// above the opening-range high.
type Direction string

const Long Direction = "LONG"

// Signal is a one-shot trade trigger. The trigger price is the range
// high, not the breakout bar's high, to model a realistic breakout fill.
type Signal struct {
	Symbol    string
	Date      string
	Direction Direction
	Trigger   float64
	RangeHigh float64
	RangeLow  float64
	Time      time.Time
}

// SignalGen watches post-range bars for the first breakout above the
// opening-range high. At most one signal fires per symbol per session,
// no matter how many later bars also clear the range.
type SignalGen struct {
	sess  market.Session
	rng   OpeningRange
	fired bool
	log   zerolog.Logger
}

func NewSignalGen(rng OpeningRange, sess market.Session, log zerolog.Logger) *SignalGen {
	return &SignalGen{sess: sess, rng: rng, log: log}
}

// OnBar evaluates one post-range bar. Once the entry window closes the
// generator stops evaluating for good.
func (g *SignalGen) OnBar(b market.Bar) (Signal, bool) {
	if g.fired || !g.rng.Closed {
		return Signal{}, false
	}
	if !g.sess.InEntryWindow(b.Time) {
		return Signal{}, false
	}
	if b.High <= g.rng.High {
		return Signal{}, false
	}

	g.fired = true
	sig := Signal{
		Symbol:    b.Symbol,
		Date:      g.rng.Date,
		Direction: Long,
		Trigger:   g.rng.High,
		RangeHigh: g.rng.High,
		RangeLow:  g.rng.Low,
		Time:      b.Time,
	}
	g.log.Info().
		Str("symbol", sig.Symbol).
		Float64("trigger", sig.Trigger).
		Time("time", sig.Time).
		Msg("breakout signal")
	return sig, true
}
