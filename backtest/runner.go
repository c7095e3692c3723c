package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/orb/exec"
	"github.com/rustyeddy/orb/journal"
	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/perf"
	"github.com/rustyeddy/orb/risk"
	"github.com/rustyeddy/orb/strategy"
	"github.com/rustyeddy/orb/trade"
)

// Options configures one replay run.
type Options struct {
	Profile        risk.Profile
	Clock          market.Clock
	Commission     trade.Commission
	StartingEquity decimal.Decimal
	Journal        journal.Journal // nil defaults to journal.Nop
	Logger         zerolog.Logger
}

// Runner replays historical bars through the same pipeline live trading
// uses: range tracker, signal generator, sizer, circuit breaker, fill
// simulator, book. Bars are processed strictly in timestamp order and
// no component ever sees a bar beyond the one being processed, so an
// identical input sequence and profile always reproduce the identical
// trade log.
type Runner struct {
	opts Options
	log  zerolog.Logger

	acct *risk.Account
	gov  *risk.Governor
	disp exec.Dispatcher
	book *trade.Book
	agg  *perf.Aggregator
	jour journal.Journal

	sessKey  string
	sess     market.Session
	trackers map[string]*strategy.RangeTracker
	gens     map[string]*strategy.SignalGen
	lastSeen map[string]market.Bar

	wins, losses int
	peakEquity   decimal.Decimal
	maxDrawdown  decimal.Decimal
	fatal        error
}

// Result summarizes one replay.
type Result struct {
	Trades      int
	Wins        int
	Losses      int
	TotalPnL    decimal.Decimal
	FinalEquity decimal.Decimal
	MaxDrawdown decimal.Decimal
	Start       time.Time
	End         time.Time
}

func NewRunner(opts Options) *Runner {
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}

	acct := risk.NewAccount(opts.StartingEquity)
	r := &Runner{
		opts:       opts,
		log:        opts.Logger,
		acct:       acct,
		gov:        risk.NewGovernor(opts.Profile, acct, opts.Logger),
		disp:       exec.NewSimulator(opts.Profile, opts.Clock, opts.Logger),
		agg:        perf.New(opts.StartingEquity),
		jour:       opts.Journal,
		trackers:   make(map[string]*strategy.RangeTracker),
		gens:       make(map[string]*strategy.SignalGen),
		lastSeen:   make(map[string]market.Bar),
		peakEquity: opts.StartingEquity,
	}
	r.book = trade.NewBook(opts.Commission, r)
	return r
}

// Perf exposes the aggregator for report generation after a run.
func (r *Runner) Perf() *perf.Aggregator { return r.agg }

// Run replays bars, which must be ordered by non-decreasing timestamp.
// All of one timestamp's bars are consumed before the clock advances.
func (r *Runner) Run(bars []market.Bar) (Result, error) {
	var res Result

	var prev time.Time
	for _, b := range bars {
		if b.Time.Before(prev) {
			return res, fmt.Errorf("bars out of order: %s %s before %s",
				b.Symbol, b.Time.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		prev = b.Time

		if res.Start.IsZero() {
			res.Start = b.Time
		}
		res.End = b.Time

		r.step(b)
		if r.fatal != nil {
			return res, r.fatal
		}
	}

	// End of data: anything still open exits at its last seen close.
	r.closeLeftovers()
	if r.fatal != nil {
		return res, r.fatal
	}

	res.Trades = r.agg.TradeCount()
	res.Wins = r.wins
	res.Losses = r.losses
	res.FinalEquity = r.acct.Equity()
	res.TotalPnL = res.FinalEquity.Sub(r.opts.StartingEquity)
	res.MaxDrawdown = r.maxDrawdown
	return res, nil
}

func (r *Runner) step(b market.Bar) {
	sess := r.opts.Clock.SessionFor(b.Time)
	if sess.Key() != r.sessKey {
		r.rollover(sess)
	}

	// Per-symbol bars must be strictly increasing; a stale bar is a
	// data gap, skipped without touching any state.
	if last, ok := r.lastSeen[b.Symbol]; ok && !b.Time.After(last.Time) {
		r.log.Warn().
			Str("symbol", b.Symbol).
			Time("bar_time", b.Time).
			Str("reason", "DATA_GAP").
			Msg("stale bar skipped")
		return
	}
	r.lastSeen[b.Symbol] = b

	// Exits are evaluated before any new entry decision on the same bar.
	r.book.OnBar(b)
	if r.fatal != nil {
		return
	}

	tr, ok := r.trackers[b.Symbol]
	if !ok {
		tr = strategy.NewRangeTracker(b.Symbol, r.sess)
		r.trackers[b.Symbol] = tr
	}
	if rng, frozen := tr.Observe(b); frozen {
		r.gens[b.Symbol] = strategy.NewSignalGen(rng, r.sess, r.log)
	}

	gen, ok := r.gens[b.Symbol]
	if !ok {
		return
	}
	if sig, fired := gen.OnBar(b); fired {
		r.enter(sig)
	}
}

func (r *Runner) enter(sig strategy.Signal) {
	shares, err := risk.Size(sig.Trigger, r.acct.Equity(), r.opts.Profile)
	if err != nil {
		r.log.Warn().
			Str("symbol", sig.Symbol).
			Err(err).
			Str("reason", "INVALID_RISK_PARAMETER").
			Msg("signal discarded")
		return
	}
	if shares == 0 {
		r.log.Info().
			Str("symbol", sig.Symbol).
			Float64("trigger", sig.Trigger).
			Msg("signal skipped: sizing produced zero shares")
		return
	}

	reason, err := r.gov.Admit(sig.Symbol)
	if err != nil {
		r.fatal = err
		return
	}
	if reason != "" {
		return // rejection already logged with its reason
	}

	pos, err := r.disp.Submit(context.Background(), exec.Intent{Signal: sig, Shares: shares})
	if err != nil {
		if relErr := r.gov.Release(); relErr != nil {
			r.fatal = relErr
			return
		}
		r.log.Warn().
			Str("symbol", sig.Symbol).
			Err(err).
			Str("reason", "EXECUTION_REJECTED").
			Msg("signal not filled")
		return
	}

	if err := r.book.Add(pos); err != nil {
		r.fatal = err
	}
}

// rollover finishes the previous session and resets per-session state.
func (r *Runner) rollover(next market.Session) {
	if r.sessKey != "" {
		r.closeLeftovers()
	}
	r.sess = next
	r.sessKey = next.Key()
	r.trackers = make(map[string]*strategy.RangeTracker)
	r.gens = make(map[string]*strategy.SignalGen)
	r.acct.StartSession()
}

// closeLeftovers time-exits any position still open after its session's
// bars ran out (for example a feed that stops short of the close).
func (r *Runner) closeLeftovers() {
	for _, sym := range r.book.OpenSymbols() {
		last, ok := r.lastSeen[sym]
		if !ok {
			continue
		}
		r.book.CloseAt(sym, decimal.NewFromFloat(last.Close), last.Time, trade.ExitTime)
	}
}

// OnClosed settles each CLOSED position into the account, the journal
// and the aggregator.
func (r *Runner) OnClosed(p *trade.Position) {
	if err := r.gov.Settle(p.PnL); err != nil {
		r.fatal = err
		return
	}
	if err := r.jour.RecordTrade(journal.FromPosition(p)); err != nil {
		r.log.Error().Err(err).Str("id", p.ID).Msg("trade log write failed")
	}
	if err := r.agg.Record(p); err != nil {
		r.fatal = err
		return
	}

	if p.PnL.IsNegative() {
		r.losses++
	} else {
		r.wins++
	}

	eq := r.acct.Equity()
	if eq.Cmp(r.peakEquity) > 0 {
		r.peakEquity = eq
	}
	if dd := r.peakEquity.Sub(eq); dd.Cmp(r.maxDrawdown) > 0 {
		r.maxDrawdown = dd
	}

	r.log.Info().
		Str("id", p.ID).
		Str("symbol", p.Symbol).
		Str("exit_reason", string(p.ExitReason)).
		Str("pnl", p.PnL.String()).
		Str("equity", eq.String()).
		Msg("position closed")
}

var _ trade.Listener = (*Runner)(nil)
