package medication

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// DefaultField replaces a blank dose or instructions value.
const DefaultField = "N/A"

// TimestampLayout is the ISO-8601 layout used for created_at and
// responded_at: local wall clock, second precision, no zone.
const TimestampLayout = "2006-01-02T15:04:05"

// ClockLayout is the 24-hour, zero-padded time-of-day layout.
const ClockLayout = "15:04"

// Medicine is one tracked medication with its daily times.
type Medicine struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Dose         string    `json:"dose"`
	Instructions string    `json:"instructions"`
	Times        []string  `json:"times"`
	CreatedAt    Timestamp `json:"created_at"`
}

// Input is the raw form data a presentation adapter collects.
type Input struct {
	Name         string
	Dose         string
	Instructions string
	Times        []string
}

// New validates in and builds a Medicine with the given positional ID.
//
// Name, dose and instructions are trimmed and NFC-normalized; a blank dose or
// instructions becomes "N/A". Times must be non-empty and every entry must be
// a zero-padded 24-hour HH:MM. Duplicate times are kept as given.
func New(id int, in Input, now time.Time) (Medicine, error) {
	name := clean(in.Name)
	if name == "" {
		return Medicine{}, NewValidationError("name", "name cannot be empty")
	}
	if len(in.Times) == 0 {
		return Medicine{}, NewValidationError("times", "at least one time is required")
	}

	times := make([]string, 0, len(in.Times))
	for _, raw := range in.Times {
		t, err := NormalizeTime(raw)
		if err != nil {
			return Medicine{}, err
		}
		times = append(times, t)
	}

	return Medicine{
		ID:           id,
		Name:         name,
		Dose:         orDefault(clean(in.Dose)),
		Instructions: orDefault(clean(in.Instructions)),
		Times:        times,
		CreatedAt:    Timestamp(now.Truncate(time.Second)),
	}, nil
}

// ParseTimes splits a comma-separated list of times, trimming each item and
// skipping blanks. Items are not validated here.
func ParseTimes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeTime trims s, folds full-width digits and colons to ASCII and
// checks that the result is a valid zero-padded 24-hour HH:MM.
func NormalizeTime(s string) (string, error) {
	t := width.Narrow.String(strings.TrimSpace(s))
	if !ValidTime(t) {
		return "", &Error{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("invalid time format: %s (use HH:MM in 24-hour format)", s),
			Field:   "times",
			Details: map[string]string{"value": s},
		}
	}
	return t, nil
}

// ValidTime reports whether s is exactly a zero-padded 24-hour HH:MM.
func ValidTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	_, err := time.Parse(ClockLayout, s)
	return err == nil
}

// Renumber reassigns IDs 1..N in slice order.
func Renumber(meds []Medicine) {
	for i := range meds {
		meds[i].ID = i + 1
	}
}

// Clone returns a deep copy of meds.
func Clone(meds []Medicine) []Medicine {
	if meds == nil {
		return nil
	}
	out := make([]Medicine, len(meds))
	for i, m := range meds {
		out[i] = m
		out[i].Times = append([]string(nil), m.Times...)
	}
	return out
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func orDefault(s string) string {
	if s == "" {
		return DefaultField
	}
	return s
}
