package backtest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/orb/journal"
	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/risk"
	"github.com/rustyeddy/orb/trade"
)

var nyc = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

func runProfile() risk.Profile {
	return risk.Profile{
		Name:                     "test",
		PositionRiskPct:          0.05,
		StopLossPct:              -0.008,
		TakeProfitPct:            0.045,
		MaxPositionNotionalPct:   8,
		MaxDailyTrades:           10,
		MaxSimultaneousPositions: 3,
		DailyLossLimitPct:        0.03,
		ConsecutiveLossLimit:     5,
		VolatilityCeiling:        45,
	}
}

func runOptions(p risk.Profile, j journal.Journal) Options {
	return Options{
		Profile: p,
		Clock:   market.Clock{Loc: nyc, ORBMinutes: 15},
		Commission: trade.Commission{
			PerShare: decimal.NewFromFloat(0.0035),
			Base:     decimal.NewFromFloat(0.35),
		},
		StartingEquity: decimal.NewFromInt(100000),
		Journal:        j,
		Logger:         zerolog.Nop(),
	}
}

func bar(sym string, day, h, m int, o, hi, lo, c float64) market.Bar {
	return market.Bar{
		Symbol: sym,
		Time:   time.Date(2025, 3, day, h, m, 0, 0, nyc),
		Open:   o,
		High:   hi,
		Low:    lo,
		Close:  c,
		Volume: 10000,
	}
}

// memJournal records trades in memory so two replays can be compared
// record for record.
type memJournal struct {
	recs []journal.TradeRecord
}

func (m *memJournal) RecordTrade(r journal.TradeRecord) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memJournal) Close() error { return nil }

func TestRunSingleTargetWin(t *testing.T) {
	t.Parallel()

	// Range 99.5-100.5 over 9:30-9:44, breakout bar at 9:45 freezes the
	// range and clears the high, target is hit at 10:00.
	bars := []market.Bar{
		bar("AAPL", 14, 9, 30, 100, 100.5, 99.5, 100.2),
		bar("AAPL", 14, 9, 31, 100.2, 100.4, 99.8, 100.1),
		bar("AAPL", 14, 9, 45, 100.6, 101, 100.4, 100.9),
		bar("AAPL", 14, 9, 46, 100.9, 101.2, 100.3, 101),
		bar("AAPL", 14, 10, 0, 101, 105.5, 101, 105.2),
	}

	jour := &memJournal{}
	r := NewRunner(runOptions(runProfile(), jour))
	res, err := r.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Trades)
	assert.Equal(t, 1, res.Wins)
	assert.Equal(t, 0, res.Losses)

	// Entry at the range high 100.50: risk 5000 over a 0.804 stop
	// distance sizes 6218 shares. Target fill 105.0225 nets
	// 4.5225*6218 - 22.113 commission.
	want := decimal.RequireFromString("28098.792")
	assert.True(t, res.TotalPnL.Equal(want), "pnl %s", res.TotalPnL)
	assert.True(t, res.FinalEquity.Equal(decimal.NewFromInt(100000).Add(want)))

	require.Len(t, jour.recs, 1)
	rec := jour.recs[0]
	assert.Equal(t, "T-000001", rec.TradeID)
	assert.Equal(t, string(trade.ExitTarget), rec.ExitReason)
	assert.Equal(t, int64(6218), rec.Shares)
}

func TestDeterministicReplay(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar("AAPL", 14, 9, 30, 100, 100.5, 99.5, 100.2),
		bar("TSLA", 14, 9, 30, 50, 50.2, 49.8, 50.1),
		bar("AAPL", 14, 9, 45, 100.6, 101, 100.4, 100.9),
		bar("TSLA", 14, 9, 45, 50.2, 50.6, 50.1, 50.5),
		bar("AAPL", 14, 10, 0, 100.4, 100.6, 99.4, 99.5),
		bar("TSLA", 14, 10, 0, 50.5, 52.5, 50.4, 52.4),
		bar("AAPL", 14, 10, 1, 99.5, 99.8, 99.3, 99.6),
		bar("TSLA", 14, 10, 1, 52.4, 52.6, 52.2, 52.5),
	}

	run := func() (Result, []journal.TradeRecord) {
		jour := &memJournal{}
		r := NewRunner(runOptions(runProfile(), jour))
		res, err := r.Run(bars)
		require.NoError(t, err)
		return res, jour.recs
	}

	res1, recs1 := run()
	res2, recs2 := run()

	assert.Equal(t, res1, res2)
	assert.Equal(t, recs1, recs2)
	require.NotEmpty(t, recs1)
	assert.Equal(t, "T-000001", recs1[0].TradeID, "ids restart every run")
}

func TestOneSignalPerSymbolPerSession(t *testing.T) {
	t.Parallel()

	// Breakout at 9:45, stopped out at 9:50, then the high is cleared
	// again at 10:05. The second breakout must not re-enter.
	bars := []market.Bar{
		bar("AAPL", 14, 9, 30, 100, 100.5, 99.5, 100.2),
		bar("AAPL", 14, 9, 45, 100.6, 101, 100.4, 100.9),
		bar("AAPL", 14, 9, 50, 100.4, 100.5, 99.5, 99.6),
		bar("AAPL", 14, 10, 5, 99.6, 102, 99.5, 101.8),
		bar("AAPL", 14, 10, 6, 101.8, 102.1, 101.5, 102),
	}

	jour := &memJournal{}
	r := NewRunner(runOptions(runProfile(), jour))
	res, err := r.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Trades)
	require.Len(t, jour.recs, 1)
	assert.Equal(t, string(trade.ExitStop), jour.recs[0].ExitReason)
}

func TestPositionLimitAcrossSymbols(t *testing.T) {
	t.Parallel()

	p := runProfile()
	p.MaxSimultaneousPositions = 2

	// Three symbols break out on the same minute; only the first two in
	// bar order get a slot.
	bars := []market.Bar{
		bar("AAA", 14, 9, 30, 100, 100.5, 99.5, 100.2),
		bar("BBB", 14, 9, 30, 50, 50.2, 49.8, 50.1),
		bar("CCC", 14, 9, 30, 20, 20.1, 19.9, 20),
		bar("AAA", 14, 9, 45, 100.6, 101, 100.4, 100.9),
		bar("BBB", 14, 9, 45, 50.2, 50.6, 50.1, 50.5),
		bar("CCC", 14, 9, 45, 20.1, 20.3, 20, 20.2),
		bar("AAA", 14, 9, 46, 100.9, 101.1, 100.7, 101),
		bar("BBB", 14, 9, 46, 50.5, 50.7, 50.4, 50.6),
		bar("CCC", 14, 9, 46, 20.2, 20.3, 20.1, 20.2),
	}

	jour := &memJournal{}
	r := NewRunner(runOptions(p, jour))
	res, err := r.Run(bars)
	require.NoError(t, err)

	// Leftovers time-exit at the last seen close.
	assert.Equal(t, 2, res.Trades)
	require.Len(t, jour.recs, 2)
	got := []string{jour.recs[0].Symbol, jour.recs[1].Symbol}
	assert.ElementsMatch(t, []string{"AAA", "BBB"}, got)
	for _, rec := range jour.recs {
		assert.Equal(t, string(trade.ExitTime), rec.ExitReason)
	}
}

func TestDailyLossHaltBlocksNewEntries(t *testing.T) {
	t.Parallel()

	// AAPL's stop-out loses ~5% of equity, past the 3% daily limit, so
	// BBB's later breakout is refused. CCC was already open before the
	// halt and still runs to its target.
	bars := []market.Bar{
		bar("AAPL", 14, 9, 30, 100, 100.5, 99.5, 100.2),
		bar("BBB", 14, 9, 30, 80, 80.4, 79.6, 80.2),
		bar("CCC", 14, 9, 30, 50, 50.2, 49.8, 50.1),
		bar("AAPL", 14, 9, 45, 100.6, 101, 100.4, 100.9),
		bar("CCC", 14, 9, 45, 50.2, 50.6, 50.1, 50.5),
		bar("BBB", 14, 9, 45, 80.2, 80.3, 80, 80.1),
		bar("AAPL", 14, 9, 50, 100.4, 100.5, 99.5, 99.6),
		bar("BBB", 14, 10, 0, 80.1, 81, 80, 80.9),
		bar("CCC", 14, 10, 30, 50.5, 52.5, 50.4, 52.4),
	}

	jour := &memJournal{}
	r := NewRunner(runOptions(runProfile(), jour))
	res, err := r.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Trades)
	assert.Equal(t, 1, res.Wins)
	assert.Equal(t, 1, res.Losses)

	require.Len(t, jour.recs, 2)
	for _, rec := range jour.recs {
		assert.NotEqual(t, "BBB", rec.Symbol, "halted account took a new entry")
	}
}

func TestShortSessionProducesNoSignals(t *testing.T) {
	t.Parallel()

	// The feed ends before the range window does, so the range never
	// freezes and nothing can trade.
	bars := []market.Bar{
		bar("AAPL", 14, 9, 30, 100, 100.5, 99.5, 100.2),
		bar("AAPL", 14, 9, 35, 100.2, 100.8, 100, 100.5),
		bar("AAPL", 14, 9, 40, 100.5, 101.5, 100.4, 101.2),
	}

	r := NewRunner(runOptions(runProfile(), nil))
	res, err := r.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Trades)
	assert.True(t, res.FinalEquity.Equal(decimal.NewFromInt(100000)))
}

func TestStopBeatsTargetOnSameBar(t *testing.T) {
	t.Parallel()

	// The 9:50 bar spans both brackets; intrabar ambiguity resolves as a
	// stop.
	bars := []market.Bar{
		bar("AAPL", 14, 9, 30, 100, 100.5, 99.5, 100.2),
		bar("AAPL", 14, 9, 45, 100.6, 101, 100.4, 100.9),
		bar("AAPL", 14, 9, 50, 100.9, 106, 99.5, 105),
	}

	jour := &memJournal{}
	r := NewRunner(runOptions(runProfile(), jour))
	res, err := r.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Trades)
	assert.Equal(t, 1, res.Losses)
	require.Len(t, jour.recs, 1)
	assert.Equal(t, string(trade.ExitStop), jour.recs[0].ExitReason)
	assert.True(t, jour.recs[0].PnL.IsNegative())
}

func TestSessionRolloverResetsHalt(t *testing.T) {
	t.Parallel()

	// Day one ends halted on the daily loss limit; day two trades again.
	bars := []market.Bar{
		bar("AAPL", 14, 9, 30, 100, 100.5, 99.5, 100.2),
		bar("AAPL", 14, 9, 45, 100.6, 101, 100.4, 100.9),
		bar("AAPL", 14, 9, 50, 100.4, 100.5, 99.5, 99.6),

		bar("AAPL", 17, 9, 30, 99, 99.5, 98.5, 99.2),
		bar("AAPL", 17, 9, 45, 99.6, 100, 99.4, 99.9),
		bar("AAPL", 17, 9, 50, 99.9, 100.1, 99.7, 100),
	}

	jour := &memJournal{}
	r := NewRunner(runOptions(runProfile(), jour))
	res, err := r.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Trades)
	require.Len(t, jour.recs, 2)
	assert.Equal(t, "2025-03-14", jour.recs[0].EntryTime.Format("2006-01-02"))
	assert.Equal(t, "2025-03-17", jour.recs[1].EntryTime.Format("2006-01-02"))
}

func TestRunRejectsOutOfOrderBars(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar("AAPL", 14, 10, 0, 100, 100.5, 99.5, 100.2),
		bar("AAPL", 14, 9, 30, 100, 100.5, 99.5, 100.2),
	}

	r := NewRunner(runOptions(runProfile(), nil))
	_, err := r.Run(bars)
	assert.Error(t, err)
}

func TestStaleBarSkippedWithoutStateChange(t *testing.T) {
	t.Parallel()

	// A duplicate 9:45 bar for AAPL arrives while TSLA's 9:45 bar keeps
	// the global order non-decreasing. The duplicate must not feed the
	// strategy twice.
	bars := []market.Bar{
		bar("AAPL", 14, 9, 30, 100, 100.5, 99.5, 100.2),
		bar("AAPL", 14, 9, 45, 100.6, 101, 100.4, 100.9),
		bar("TSLA", 14, 9, 45, 50, 50.5, 49.8, 50.2),
		bar("AAPL", 14, 9, 45, 100.6, 101, 100.4, 100.9),
		bar("AAPL", 14, 9, 46, 100.9, 101.1, 100.7, 101),
	}

	jour := &memJournal{}
	r := NewRunner(runOptions(runProfile(), jour))
	res, err := r.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Trades)
	require.Len(t, jour.recs, 1)
	assert.Equal(t, "AAPL", jour.recs[0].Symbol)
}
