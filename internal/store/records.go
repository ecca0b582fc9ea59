package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/dosewatch/internal/medication"
)

// LoadMedicines decodes the medicine collection.
//
// A record that does not decode, or that breaks the Medicine invariants
// (empty name, no times, malformed time), makes the collection corrupt: it
// is logged and an empty list is returned. IDs are renumbered 1..N in stored
// order.
func LoadMedicines(ctx context.Context, s Store) ([]medication.Medicine, error) {
	raw, err := s.Load(ctx, KindMedicines)
	if err != nil {
		return nil, err
	}

	meds := make([]medication.Medicine, 0, len(raw))
	for i, rec := range raw {
		var m medication.Medicine
		if err := json.Unmarshal(rec, &m); err != nil {
			warnCorrupt(KindMedicines, fmt.Errorf("record %d: %w", i, err))
			return []medication.Medicine{}, nil
		}
		if err := checkMedicine(m); err != nil {
			warnCorrupt(KindMedicines, fmt.Errorf("record %d: %w", i, err))
			return []medication.Medicine{}, nil
		}
		meds = append(meds, m)
	}
	medication.Renumber(meds)
	return meds, nil
}

// SaveMedicines replaces the medicine collection.
func SaveMedicines(ctx context.Context, s Store, meds []medication.Medicine) error {
	records, err := encodeAll(meds)
	if err != nil {
		return fmt.Errorf("save medicines: %w", err)
	}
	return s.Save(ctx, KindMedicines, records)
}

// LoadLog decodes the adherence log. An undecodable record makes the
// collection corrupt and an empty log is returned.
func LoadLog(ctx context.Context, s Store) ([]medication.LogEntry, error) {
	entries, _, err := loadLog(ctx, s)
	return entries, err
}

// loadLog reports whether the stored log was readable as-is. ok is false when
// a record failed to decode and the empty result stands in for it.
func loadLog(ctx context.Context, s Store) (entries []medication.LogEntry, ok bool, err error) {
	raw, err := s.Load(ctx, KindLogs)
	if err != nil {
		return nil, false, err
	}

	entries = make([]medication.LogEntry, 0, len(raw))
	for i, rec := range raw {
		var e medication.LogEntry
		if err := json.Unmarshal(rec, &e); err != nil {
			warnCorrupt(KindLogs, fmt.Errorf("record %d: %w", i, err))
			return []medication.LogEntry{}, false, nil
		}
		entries = append(entries, e)
	}
	return entries, true, nil
}

// AppendLog adds entry to the end of the adherence log.
//
// The write starts from what LoadLog sees: when the log reads as empty,
// whether it is new or was corrupt, the collection is replaced by entry
// alone. Otherwise the backend's Appender is used when it has one and a
// load-append-save cycle when it does not.
func AppendLog(ctx context.Context, s Store, entry medication.LogEntry) error {
	rec, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}

	existing, ok, err := loadLog(ctx, s)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	if !ok || len(existing) == 0 {
		return s.Save(ctx, KindLogs, []json.RawMessage{rec})
	}

	if a, ok := s.(Appender); ok {
		return a.Append(ctx, KindLogs, rec)
	}

	records, err := encodeAll(existing)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return s.Save(ctx, KindLogs, append(records, rec))
}

func encodeAll[T any](items []T) ([]json.RawMessage, error) {
	records := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		rec, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func checkMedicine(m medication.Medicine) error {
	if m.Name == "" {
		return medication.NewValidationError("name", "name cannot be empty")
	}
	if len(m.Times) == 0 {
		return medication.NewValidationError("times", "at least one time is required")
	}
	for _, t := range m.Times {
		if !medication.ValidTime(t) {
			return medication.NewValidationError("times", fmt.Sprintf("invalid time %q", t))
		}
	}
	return nil
}
