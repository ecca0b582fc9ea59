package engine

import (
	"fmt"
	"time"

	"github.com/roach88/dosewatch/internal/medication"
)

// Slot is one (medicine, time-of-day) scheduling unit.
type Slot struct {
	// Key identifies the slot across rebuilds. It is derived from the
	// medicine's display fields, the time, and the occurrence number of
	// that combination, so renumbering IDs does not change it.
	Key string `json:"key"`

	MedicineID   int    `json:"medicine_id"`
	Medicine     string `json:"medicine"`
	Dose         string `json:"dose"`
	Instructions string `json:"instructions"`
	Time         string `json:"time"`
}

// BuildSlots expands meds into slots in list order, one per time entry.
// Duplicate times produce distinct slots.
func BuildSlots(meds []medication.Medicine) []Slot {
	seen := make(map[string]int)
	var slots []Slot

	for _, m := range meds {
		for _, t := range m.Times {
			base := fmt.Sprintf("%s\x00%s\x00%s\x00%s", m.Name, m.Dose, m.Instructions, t)
			seen[base]++
			slots = append(slots, Slot{
				Key:          fmt.Sprintf("%s\x00%d", base, seen[base]),
				MedicineID:   m.ID,
				Medicine:     m.Name,
				Dose:         m.Dose,
				Instructions: m.Instructions,
				Time:         t,
			})
		}
	}
	return slots
}

// Match returns the slots whose time equals now's HH:MM, in slot order.
//
// Match is pure: it keeps no state and fires nothing. Times are assumed to
// be valid; they are validated when a medicine is created.
func Match(now time.Time, slots []Slot) []Slot {
	hhmm := clockOf(now)
	var out []Slot
	for _, s := range slots {
		if s.Time == hhmm {
			out = append(out, s)
		}
	}
	return out
}

// Matcher applies once-per-minute deduplication on top of Match.
//
// It remembers, per slot key, the last minute the slot fired. A key present
// with a zero time is known but has never fired.
//
// Not safe for concurrent use; the Engine guards it with its mutex.
type Matcher struct {
	fired map[string]time.Time
}

// NewMatcher returns a Matcher with no history.
func NewMatcher() *Matcher {
	return &Matcher{fired: make(map[string]time.Time)}
}

// Reset replaces the known slot set with slots.
//
// History is kept for keys that survive and dropped for keys that are gone.
// A key seen for the first time whose time equals now's minute is marked as
// already fired, so it first fires on the next day.
func (m *Matcher) Reset(now time.Time, slots []Slot) {
	minute := minuteOf(now)
	hhmm := clockOf(now)

	next := make(map[string]time.Time, len(slots))
	for _, s := range slots {
		if last, ok := m.fired[s.Key]; ok {
			next[s.Key] = last
			continue
		}
		if s.Time == hhmm {
			next[s.Key] = minute
		} else {
			next[s.Key] = time.Time{}
		}
	}
	m.fired = next
}

// Due returns the slots matching now that have not fired in now's minute,
// and marks them fired. Calling Due again within the same minute returns
// nothing for those slots.
func (m *Matcher) Due(now time.Time, slots []Slot) []Slot {
	minute := minuteOf(now)

	var due []Slot
	for _, s := range Match(now, slots) {
		if last, ok := m.fired[s.Key]; ok && last.Equal(minute) {
			continue
		}
		m.fired[s.Key] = minute
		due = append(due, s)
	}
	return due
}

// LastFired returns the minute key last fired, if it ever did.
func (m *Matcher) LastFired(key string) (time.Time, bool) {
	last, ok := m.fired[key]
	if !ok || last.IsZero() {
		return time.Time{}, false
	}
	return last, true
}
