package strategy

import (
	"time"

	"github.com/rustyeddy/orb/market"
)

// OpeningRange is the high/low band built from the first bars of a
// session. It is mutated only while the range window is open and frozen
// once Closed is set.
type OpeningRange struct {
	Symbol  string
	Date    string
	High    float64
	Low     float64
	EndTime time.Time
	Closed  bool

	bars int
}

// RangeTracker accumulates one symbol's opening range for one session.
// A tracker is created at session start and discarded at session end.
type RangeTracker struct {
	sess market.Session
	rng  OpeningRange
}

func NewRangeTracker(symbol string, sess market.Session) *RangeTracker {
	return &RangeTracker{
		sess: sess,
		rng: OpeningRange{
			Symbol:  symbol,
			Date:    sess.Key(),
			EndTime: sess.RangeEnd,
		},
	}
}

// Observe feeds one bar to the tracker. Bars inside the range window
// widen the range; the first bar at or after the window end freezes it
// and returns it exactly once. A session with no bars inside the window
// never produces a range, so no signal can fire that day.
func (t *RangeTracker) Observe(b market.Bar) (OpeningRange, bool) {
	if t.rng.Closed {
		return OpeningRange{}, false
	}

	if t.sess.InRangeWindow(b.Time) {
		if t.rng.bars == 0 {
			t.rng.High = b.High
			t.rng.Low = b.Low
		} else {
			if b.High > t.rng.High {
				t.rng.High = b.High
			}
			if b.Low < t.rng.Low {
				t.rng.Low = b.Low
			}
		}
		t.rng.bars++
		return OpeningRange{}, false
	}

	if b.Time.Before(t.sess.RangeEnd) {
		// Pre-open bar, ignore.
		return OpeningRange{}, false
	}

	t.rng.Closed = true
	if t.rng.bars == 0 {
		// Window elapsed without a single bar: no range for this session.
		return OpeningRange{}, false
	}
	return t.rng, true
}
