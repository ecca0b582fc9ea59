package medication

import "time"

// ScheduledLayout formats LogEntry.ScheduledTime: the calendar date followed
// by the triggering HH:MM.
const ScheduledLayout = "2006-01-02 15:04"

// LogEntry records one response to one firing.
//
// Medicine holds the name rather than the positional ID so history stays
// meaningful after deletions renumber the list.
type LogEntry struct {
	Medicine      string    `json:"medicine"`
	ScheduledTime string    `json:"scheduled_time"`
	RespondedAt   Timestamp `json:"responded_at"`
	Taken         bool      `json:"taken"`
}

// ScheduledFor joins the date of day with the HH:MM time string.
func ScheduledFor(day time.Time, hhmm string) string {
	return day.Format("2006-01-02") + " " + hhmm
}

// Status renders Taken for a confirmed dose and Missed otherwise.
func (e LogEntry) Status() string {
	if e.Taken {
		return "Taken"
	}
	return "Missed"
}

// Validate checks the required fields of an entry.
func (e LogEntry) Validate() error {
	if e.Medicine == "" {
		return NewValidationError("medicine", "medicine cannot be empty")
	}
	if e.ScheduledTime == "" {
		return NewValidationError("scheduled_time", "scheduled time cannot be empty")
	}
	if time.Time(e.RespondedAt).IsZero() {
		return NewValidationError("responded_at", "responded_at cannot be empty")
	}
	return nil
}
