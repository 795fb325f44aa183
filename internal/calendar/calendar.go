// Package calendar produces the local calendar-day keys used for completion
// dates and streak matching. Every date comparison in leettrack goes through
// DateKey so that stamping and matching always agree on the format.
package calendar

import "time"

// Layout is the YYYY-MM-DD format of a date key.
const Layout = "2006-01-02"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the local time zone.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return c.T
}

// DateKey returns the zero-padded calendar day of t in t's own location.
func DateKey(t time.Time) string {
	return t.Format(Layout)
}

// Today returns the date key for the clock's current day.
func Today(c Clock) string {
	return DateKey(c.Now())
}

// Midday anchors t at noon of its calendar day. Stepping whole days from
// noon never crosses a day boundary on DST transitions.
func Midday(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, t.Location())
}

// PreviousDay returns noon of the calendar day before t.
func PreviousDay(t time.Time) time.Time {
	return Midday(t).AddDate(0, 0, -1)
}

// Parse parses a date key in the given location. A nil location means local.
func Parse(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(Layout, key, loc)
}

// Valid reports whether key is a well-formed date key.
func Valid(key string) bool {
	t, err := Parse(key, time.UTC)
	return err == nil && DateKey(t) == key
}
