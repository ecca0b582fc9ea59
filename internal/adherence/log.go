// Package adherence is the append-only record of responses to reminders.
package adherence

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/dosewatch/internal/medication"
	"github.com/roach88/dosewatch/internal/store"
)

// Log appends and reads dose events. Entries are never edited or removed.
type Log struct {
	store store.Store
}

// New returns a Log persisted in s.
func New(s store.Store) *Log {
	return &Log{store: s}
}

// Append validates the required fields of entry and writes it durably
// before returning.
func (l *Log) Append(ctx context.Context, entry medication.LogEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := store.AppendLog(ctx, l.store, entry); err != nil {
		return fmt.Errorf("append dose event: %w", err)
	}
	return nil
}

// All returns every entry in insertion order.
func (l *Log) All(ctx context.Context) ([]medication.LogEntry, error) {
	entries, err := store.LoadLog(ctx, l.store)
	if err != nil {
		return nil, fmt.Errorf("read dose events: %w", err)
	}
	return entries, nil
}

// Query narrows a listing. Zero fields match everything.
type Query struct {
	// Medicine matches names case-insensitively.
	Medicine string

	// From and To bound the scheduled date, inclusive, as YYYY-MM-DD.
	From string
	To   string
}

// Filter returns the entries of entries matching q, keeping order.
func Filter(entries []medication.LogEntry, q Query) []medication.LogEntry {
	out := make([]medication.LogEntry, 0, len(entries))
	for _, e := range entries {
		if q.Medicine != "" && !strings.EqualFold(e.Medicine, q.Medicine) {
			continue
		}
		day := scheduledDay(e.ScheduledTime)
		if q.From != "" && day < q.From {
			continue
		}
		if q.To != "" && day > q.To {
			continue
		}
		out = append(out, e)
	}
	return out
}

// scheduledDay returns the YYYY-MM-DD prefix; dates in that form compare
// correctly as strings.
func scheduledDay(scheduled string) string {
	day, _, _ := strings.Cut(scheduled, " ")
	return day
}
