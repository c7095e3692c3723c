package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/orb/config"
	"github.com/rustyeddy/orb/exec"
	"github.com/rustyeddy/orb/live"
	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/trade"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Trade real-time bars through the breakout pipeline",
	Long: `Live consumes newline-delimited JSON aggregates (one minute bar per
line, Polygon aggregate shape with a "sym" field) from stdin or a file
and trades them through the same pipeline the backtester replays.

Paper mode fills entries at the trigger price with the deterministic
simulator; real order routing requires a broker adapter.

Example:
  feed-client --symbols AAPL,TSLA | orb live --paper --symbols AAPL,TSLA`,
	RunE: runLive,
}

var (
	liveStreamPath string
	livePaper      bool
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVar(&liveStreamPath, "stream", "-", "bar stream source (file path, or - for stdin)")
	liveCmd.Flags().BoolVar(&livePaper, "paper", false, "fill orders with the simulator instead of a broker")
}

func runLive(cmd *cobra.Command, args []string) error {
	if !livePaper {
		return fmt.Errorf("no broker adapter configured; run with --paper")
	}

	cfg, err := loadConfig(config.ModeLive)
	if err != nil {
		return err
	}
	prof, err := cfg.ResolveProfile()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clock := market.Clock{Loc: loc, ORBMinutes: cfg.ORBMinutes}

	in := io.Reader(os.Stdin)
	if liveStreamPath != "-" {
		f, err := os.Open(liveStreamPath)
		if err != nil {
			return fmt.Errorf("open stream: %w", err)
		}
		defer f.Close()
		in = f
	}

	sink, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := newStreamSource(cfg.Symbols)
	go src.pump(ctx, in, market.NewFeed(loc, logger))

	engine := live.NewEngine(live.Options{
		Profile: prof,
		Clock:   clock,
		Commission: trade.Commission{
			PerShare: decimal.NewFromFloat(cfg.Commission.PerShare),
			Base:     decimal.NewFromFloat(cfg.Commission.Base),
		},
		Symbols:          cfg.Symbols,
		StartingEquity:   decimal.NewFromFloat(cfg.StartingEquity),
		Source:           src,
		Dispatcher:       exec.NewSimulator(prof, clock, logger),
		Journal:          sink,
		DisconnectBudget: cfg.Live.DisconnectBudget,
		ForceCloseOnStop: cfg.Live.ForceCloseOnStop,
		Logger:           logger,
	})

	fmt.Printf("Trading %v with profile %s (paper)\n", cfg.Symbols, prof.Name)

	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("live run: %w", err)
	}

	sum := engine.Summary()
	fmt.Printf("\nSession Complete\n")
	fmt.Printf("  Trades: %d (%d wins, %d losses)\n", sum.Trades, sum.Wins, sum.Losses)
	fmt.Printf("  Final Equity: $%s\n", sum.FinalEquity.StringFixed(2))
	return nil
}

// aggMessage is one stream line: a feed aggregate plus its symbol.
type aggMessage struct {
	Symbol string `json:"sym"`
	market.FeedRecord
}

// streamSource fans one NDJSON bar stream out to per-symbol channels.
type streamSource struct {
	mu   sync.Mutex
	subs map[string]chan market.Bar
}

func newStreamSource(symbols []string) *streamSource {
	subs := make(map[string]chan market.Bar, len(symbols))
	for _, s := range symbols {
		subs[s] = make(chan market.Bar, 64)
	}
	return &streamSource{subs: subs}
}

func (s *streamSource) Bars(_ context.Context, symbol string) (<-chan market.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.subs[symbol]
	if !ok {
		return nil, fmt.Errorf("no stream for symbol %s", symbol)
	}
	return ch, nil
}

// pump decodes stream lines and routes bars until the input ends or the
// context is cancelled, then closes every subscription.
func (s *streamSource) pump(ctx context.Context, in io.Reader, feed *market.Feed) {
	defer s.closeAll()

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg aggMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.Warn().Err(err).Msg("bad stream line, skipped")
			continue
		}

		s.mu.Lock()
		ch, ok := s.subs[msg.Symbol]
		s.mu.Unlock()
		if !ok {
			continue
		}

		b, err := feed.Normalize(msg.Symbol, msg.FeedRecord)
		if err != nil {
			continue // the feed already logged the gap
		}

		select {
		case ch <- b:
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil {
		logger.Error().Err(err).Msg("stream read failed")
	}
}

func (s *streamSource) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		close(ch)
	}
}
