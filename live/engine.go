package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/orb/exec"
	"github.com/rustyeddy/orb/journal"
	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/risk"
	"github.com/rustyeddy/orb/strategy"
	"github.com/rustyeddy/orb/trade"
)

// BarSource streams real-time bars for one symbol. The channel closes
// when the stream ends. A failed subscription reports a broker outage by
// wrapping exec.ErrBrokerDisconnected; anything else is fatal.
type BarSource interface {
	Bars(ctx context.Context, symbol string) (<-chan market.Bar, error)
}

// Options configures a live run.
type Options struct {
	Profile        risk.Profile
	Clock          market.Clock
	Commission     trade.Commission
	Symbols        []string
	StartingEquity decimal.Decimal

	Source     BarSource
	Dispatcher exec.Dispatcher
	Broker     exec.Broker // optional; enables account-value marks

	Journal journal.Journal // nil defaults to journal.Nop

	// DisconnectBudget bounds broker outages per run; one more aborts.
	DisconnectBudget int
	ReconnectWait    time.Duration

	// ForceCloseOnStop liquidates open positions at the last seen price
	// when a symbol's stream ends; otherwise they are left to the broker.
	ForceCloseOnStop bool

	MarkInterval time.Duration
	Logger       zerolog.Logger
}

// Summary reports a finished run.
type Summary struct {
	Trades      int
	Wins        int
	Losses      int
	FinalEquity decimal.Decimal
}

// Engine runs one pipeline goroutine per symbol against a shared
// account, circuit breaker and position book. The per-symbol pipelines
// are the same bar-at-a-time decision path the backtester replays.
type Engine struct {
	opts Options
	log  zerolog.Logger

	acct *risk.Account
	gov  *risk.Governor
	book *trade.Book
	jour journal.Journal

	cancel context.CancelFunc

	mu          sync.Mutex
	sessKey     string
	disconnects int
	trades      int
	wins        int
	losses      int
	fatal       error
}

func NewEngine(opts Options) *Engine {
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}

	acct := risk.NewAccount(opts.StartingEquity)
	e := &Engine{
		opts: opts,
		log:  opts.Logger,
		acct: acct,
		gov:  risk.NewGovernor(opts.Profile, acct, opts.Logger),
		jour: opts.Journal,
	}
	e.book = trade.NewBook(opts.Commission, e)
	return e
}

// Account exposes the shared account for status reporting.
func (e *Engine) Account() *risk.Account { return e.acct }

// Halt refuses all new entries for the rest of the run while open
// positions keep being managed to a normal exit.
func (e *Engine) Halt() {
	e.acct.Stop()
	e.log.Warn().Msg("trading halted, new entries refused")
}

// Run streams every configured symbol until the context is cancelled or
// all streams end. It returns the first fatal error, if any.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	var marks sync.WaitGroup
	if e.opts.Broker != nil && e.opts.MarkInterval > 0 {
		marks.Add(1)
		go func() {
			defer marks.Done()
			e.markLoop(ctx)
		}()
	}

	var wg sync.WaitGroup
	for _, sym := range e.opts.Symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			e.runSymbol(ctx, sym)
		}(sym)
	}
	wg.Wait()

	cancel()
	marks.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatal
}

// Summary reports the run totals so far.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Summary{
		Trades:      e.trades,
		Wins:        e.wins,
		Losses:      e.losses,
		FinalEquity: e.acct.Equity(),
	}
}

func (e *Engine) runSymbol(ctx context.Context, sym string) {
	p := &pipeline{e: e, symbol: sym}

	for {
		ch, err := e.opts.Source.Bars(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, exec.ErrBrokerDisconnected) {
				if derr := e.noteDisconnect(sym); derr != nil {
					e.setFatal(derr)
					break
				}
				select {
				case <-time.After(e.opts.ReconnectWait):
					continue
				case <-ctx.Done():
				}
				break
			}
			e.setFatal(fmt.Errorf("subscribe %s: %w", sym, err))
			break
		}

		for b := range ch {
			p.step(ctx, b)
			if e.fatalErr() != nil {
				e.cancel()
			}
		}
		break
	}

	e.finishSymbol(p)
}

// finishSymbol handles a position still open after its stream ended.
func (e *Engine) finishSymbol(p *pipeline) {
	if !p.seen || !e.book.HasOpen(p.symbol) {
		return
	}
	if e.opts.ForceCloseOnStop {
		e.book.CloseAt(p.symbol, decimal.NewFromFloat(p.last.Close), p.last.Time, trade.ExitForced)
		return
	}
	e.log.Warn().
		Str("symbol", p.symbol).
		Msg("stream ended with position still open")
}

func (e *Engine) enter(ctx context.Context, sig strategy.Signal) {
	shares, err := risk.Size(sig.Trigger, e.acct.Equity(), e.opts.Profile)
	if err != nil {
		e.log.Warn().
			Str("symbol", sig.Symbol).
			Err(err).
			Str("reason", "INVALID_RISK_PARAMETER").
			Msg("signal discarded")
		return
	}
	if shares == 0 {
		e.log.Info().
			Str("symbol", sig.Symbol).
			Float64("trigger", sig.Trigger).
			Msg("signal skipped: sizing produced zero shares")
		return
	}

	reason, err := e.gov.Admit(sig.Symbol)
	if err != nil {
		e.setFatal(err)
		return
	}
	if reason != "" {
		return
	}

	pos, err := e.opts.Dispatcher.Submit(ctx, exec.Intent{Signal: sig, Shares: shares})
	if err != nil {
		if relErr := e.gov.Release(); relErr != nil {
			e.setFatal(relErr)
			return
		}
		if errors.Is(err, exec.ErrBrokerDisconnected) {
			if derr := e.noteDisconnect(sig.Symbol); derr != nil {
				e.setFatal(derr)
			}
			return
		}
		e.log.Warn().
			Str("symbol", sig.Symbol).
			Err(err).
			Str("reason", "EXECUTION_REJECTED").
			Msg("signal not filled")
		return
	}

	if err := e.book.Add(pos); err != nil {
		e.setFatal(err)
	}
}

// startSession resets daily account state once per session, no matter
// which symbol's pipeline sees the new date first.
func (e *Engine) startSession(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if key == e.sessKey {
		return
	}
	e.sessKey = key
	e.acct.StartSession()
	e.log.Info().Str("session", key).Msg("session started")
}

func (e *Engine) noteDisconnect(sym string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.disconnects++
	if e.disconnects > e.opts.DisconnectBudget {
		return fmt.Errorf("%w: %d outages exceed budget %d",
			exec.ErrBrokerDisconnected, e.disconnects, e.opts.DisconnectBudget)
	}
	e.log.Warn().
		Str("symbol", sym).
		Int("outage", e.disconnects).
		Int("budget", e.opts.DisconnectBudget).
		Msg("broker disconnected, retrying")
	return nil
}

func (e *Engine) setFatal(err error) {
	e.mu.Lock()
	if e.fatal == nil {
		e.fatal = err
	}
	e.mu.Unlock()
	e.cancel()
}

func (e *Engine) fatalErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatal
}

func (e *Engine) markLoop(ctx context.Context) {
	t := time.NewTicker(e.opts.MarkInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.mark(ctx)
		}
	}
}

func (e *Engine) mark(ctx context.Context) {
	v, err := e.opts.Broker.AccountValue(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("account value poll failed")
		return
	}
	e.acct.Mark(v)
}

// OnClosed settles each CLOSED position into the account and the
// journal. Called from whichever pipeline's bar closed the position.
func (e *Engine) OnClosed(p *trade.Position) {
	if err := e.gov.Settle(p.PnL); err != nil {
		e.setFatal(err)
		return
	}
	if err := e.jour.RecordTrade(journal.FromPosition(p)); err != nil {
		e.log.Error().Err(err).Str("id", p.ID).Msg("trade log write failed")
	}

	e.mu.Lock()
	e.trades++
	if p.PnL.IsNegative() {
		e.losses++
	} else {
		e.wins++
	}
	e.mu.Unlock()

	e.log.Info().
		Str("id", p.ID).
		Str("symbol", p.Symbol).
		Str("exit_reason", string(p.ExitReason)).
		Str("pnl", p.PnL.String()).
		Msg("position closed")
}

var _ trade.Listener = (*Engine)(nil)
