package engine

import "time"

// Clock supplies the local wall-clock time.
//
// The engine reads the clock once per tick and once per recorded response.
// Tests inject a settable clock to simulate a day deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time { return time.Now() }

// minuteOf truncates t to the start of its wall-clock minute in t's
// location.
func minuteOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// clockOf formats t as a zero-padded 24-hour HH:MM.
func clockOf(t time.Time) string {
	return t.Format("15:04")
}
