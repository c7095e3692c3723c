package strategy

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/orb/market"
)

var nyc = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

func sessionFor(t *testing.T, day string) market.Session {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", day, nyc)
	require.NoError(t, err)
	return market.Clock{Loc: nyc, ORBMinutes: 15}.SessionFor(d.Add(10 * time.Hour))
}

func bar(symbol string, day string, h, m int, high, low float64) market.Bar {
	d, _ := time.ParseInLocation("2006-01-02", day, nyc)
	return market.Bar{
		Symbol: symbol,
		Time:   time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, nyc),
		Open:   low,
		High:   high,
		Low:    low,
		Close:  high,
	}
}

func TestRangeTrackerFreezesOnce(t *testing.T) {
	t.Parallel()

	sess := sessionFor(t, "2025-03-14")
	tr := NewRangeTracker("AAPL", sess)

	_, done := tr.Observe(bar("AAPL", "2025-03-14", 9, 30, 100.5, 99.8))
	assert.False(t, done)
	_, done = tr.Observe(bar("AAPL", "2025-03-14", 9, 31, 101.2, 100.1))
	assert.False(t, done)
	_, done = tr.Observe(bar("AAPL", "2025-03-14", 9, 40, 100.9, 99.2))
	assert.False(t, done)

	rng, done := tr.Observe(bar("AAPL", "2025-03-14", 9, 45, 101.5, 101.0))
	require.True(t, done)
	assert.True(t, rng.Closed)
	assert.Equal(t, 101.2, rng.High)
	assert.Equal(t, 99.2, rng.Low)
	assert.Equal(t, "2025-03-14", rng.Date)

	// Frozen: later bars emit nothing and mutate nothing.
	_, done = tr.Observe(bar("AAPL", "2025-03-14", 9, 46, 150.0, 50.0))
	assert.False(t, done)
}

func TestRangeTrackerEmptySession(t *testing.T) {
	t.Parallel()

	sess := sessionFor(t, "2025-03-14")
	tr := NewRangeTracker("AAPL", sess)

	// First bar arrives after the window already elapsed: no range.
	rng, done := tr.Observe(bar("AAPL", "2025-03-14", 10, 0, 101.0, 100.0))
	assert.False(t, done)
	assert.False(t, rng.Closed)
}

func TestSignalGenFiresOncePerSession(t *testing.T) {
	t.Parallel()

	sess := sessionFor(t, "2025-03-14")
	rng := OpeningRange{Symbol: "AAPL", Date: "2025-03-14", High: 101.2, Low: 99.2, Closed: true}
	gen := NewSignalGen(rng, sess, zerolog.Nop())

	// Below the range high: nothing.
	_, ok := gen.OnBar(bar("AAPL", "2025-03-14", 9, 50, 101.2, 100.9))
	assert.False(t, ok)

	sig, ok := gen.OnBar(bar("AAPL", "2025-03-14", 9, 51, 101.5, 101.0))
	require.True(t, ok)
	assert.Equal(t, Long, sig.Direction)
	assert.Equal(t, 101.2, sig.Trigger, "fills at the range high, not the bar high")
	assert.Equal(t, 101.2, sig.RangeHigh)
	assert.Equal(t, 99.2, sig.RangeLow)

	// Idempotent: further breakout bars are ignored.
	_, ok = gen.OnBar(bar("AAPL", "2025-03-14", 9, 52, 102.5, 101.8))
	assert.False(t, ok)
}

func TestSignalGenRespectsEntryCutoff(t *testing.T) {
	t.Parallel()

	sess := sessionFor(t, "2025-03-14")
	rng := OpeningRange{Symbol: "AAPL", Date: "2025-03-14", High: 101.2, Low: 99.2, Closed: true}
	gen := NewSignalGen(rng, sess, zerolog.Nop())

	_, ok := gen.OnBar(bar("AAPL", "2025-03-14", 15, 30, 105.0, 104.0))
	assert.False(t, ok, "no entries at or after the cutoff")

	_, ok = gen.OnBar(bar("AAPL", "2025-03-14", 15, 45, 106.0, 105.0))
	assert.False(t, ok)
}
