package market

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedNormalize(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	f := NewFeed(loc, zerolog.Nop())

	rec := FeedRecord{
		Volume:     1200,
		VWAP:       100.12,
		Open:       100.00,
		Close:      100.25,
		High:       100.40,
		Low:        99.90,
		TimeMillis: time.Date(2025, 3, 14, 9, 30, 0, 0, loc).UnixMilli(),
		TradeCount: 42,
	}

	bar, err := f.Normalize("AAPL", rec)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", bar.Symbol)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 30, 0, 0, loc), bar.Time)
	assert.Equal(t, 100.40, bar.High)
	assert.Equal(t, 99.90, bar.Low)
	assert.Equal(t, 42, bar.TradeCount)
	assert.Equal(t, "2025-03-14", bar.SessionDate())
}

func TestFeedRejectsOutOfOrder(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	f := NewFeed(loc, zerolog.Nop())
	base := time.Date(2025, 3, 14, 9, 30, 0, 0, loc)

	_, err = f.Normalize("TSLA", FeedRecord{TimeMillis: base.UnixMilli()})
	require.NoError(t, err)

	// Same timestamp again: rejected.
	_, err = f.Normalize("TSLA", FeedRecord{TimeMillis: base.UnixMilli()})
	assert.ErrorIs(t, err, ErrDataGap)

	// Earlier timestamp: rejected.
	_, err = f.Normalize("TSLA", FeedRecord{TimeMillis: base.Add(-time.Minute).UnixMilli()})
	assert.ErrorIs(t, err, ErrDataGap)

	// Other symbols are tracked independently.
	_, err = f.Normalize("NVDA", FeedRecord{TimeMillis: base.UnixMilli()})
	assert.NoError(t, err)

	// Next minute for the first symbol is fine again.
	_, err = f.Normalize("TSLA", FeedRecord{TimeMillis: base.Add(time.Minute).UnixMilli()})
	assert.NoError(t, err)
}

func TestSessionWindows(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	clock := Clock{Loc: loc, ORBMinutes: 15}
	sess := clock.SessionFor(time.Date(2025, 3, 14, 10, 12, 0, 0, loc))

	assert.Equal(t, "2025-03-14", sess.Key())
	assert.Equal(t, time.Date(2025, 3, 14, 9, 30, 0, 0, loc), sess.Open)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 45, 0, 0, loc), sess.RangeEnd)
	assert.Equal(t, time.Date(2025, 3, 14, 15, 30, 0, 0, loc), sess.EntryCutoff)
	assert.Equal(t, time.Date(2025, 3, 14, 16, 0, 0, 0, loc), sess.Close)

	at := func(h, m int) time.Time {
		return time.Date(2025, 3, 14, h, m, 0, 0, loc)
	}

	assert.True(t, sess.InRangeWindow(at(9, 30)))
	assert.True(t, sess.InRangeWindow(at(9, 44)))
	assert.False(t, sess.InRangeWindow(at(9, 45)))
	assert.False(t, sess.InRangeWindow(at(9, 29)))

	assert.True(t, sess.InEntryWindow(at(9, 45)))
	assert.True(t, sess.InEntryWindow(at(15, 29)))
	assert.False(t, sess.InEntryWindow(at(15, 30)))
	assert.False(t, sess.InEntryWindow(at(9, 44)))
}
