package market

import "time"

// Regular-session boundaries, exchange-local.
const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0

	// Last minute a new entry may trigger. The original system stopped
	// taking entries 30 minutes before the close.
	cutoffHour   = 15
	cutoffMinute = 30
)

// Session describes one trading day's windows for the ORB strategy:
// the opening-range window, the entry window, and the close.
type Session struct {
	Date        time.Time // midnight, exchange-local
	Open        time.Time
	RangeEnd    time.Time // open + orb window; first bar at/after freezes the range
	EntryCutoff time.Time // no new entries at/after this time
	Close       time.Time
}

// Key returns the session date as YYYY-MM-DD.
func (s Session) Key() string { return s.Date.Format("2006-01-02") }

// InRangeWindow reports whether t falls inside the opening-range window
// [Open, RangeEnd).
func (s Session) InRangeWindow(t time.Time) bool {
	return !t.Before(s.Open) && t.Before(s.RangeEnd)
}

// InEntryWindow reports whether a breakout at t is still tradable:
// strictly after the range window and before the entry cutoff.
func (s Session) InEntryWindow(t time.Time) bool {
	return !t.Before(s.RangeEnd) && t.Before(s.EntryCutoff)
}

// Clock derives Sessions from bar timestamps.
type Clock struct {
	Loc        *time.Location
	ORBMinutes int
}

// SessionFor returns the session containing t.
func (c Clock) SessionFor(t time.Time) Session {
	lt := t.In(c.Loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.Loc)
	open := day.Add(time.Duration(openHour)*time.Hour + time.Duration(openMinute)*time.Minute)
	return Session{
		Date:        day,
		Open:        open,
		RangeEnd:    open.Add(time.Duration(c.ORBMinutes) * time.Minute),
		EntryCutoff: day.Add(time.Duration(cutoffHour)*time.Hour + time.Duration(cutoffMinute)*time.Minute),
		Close:       day.Add(time.Duration(closeHour)*time.Hour + time.Duration(closeMinute)*time.Minute),
	}
}
