package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/dosewatch/internal/medication"
)

// backends returns one fresh store per backend, closed on cleanup.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"json":   NewFileStore(t.TempDir()),
		"sqlite": sq,
	}
}

func testMedicines() []medication.Medicine {
	at := time.Date(2026, 2, 14, 9, 15, 0, 0, time.Local)
	return []medication.Medicine{
		{
			ID: 1, Name: "Aspirin", Dose: "100mg", Instructions: "After food",
			Times: []string{"08:00", "20:00"}, CreatedAt: medication.Timestamp(at),
		},
		{
			ID: 2, Name: "Metformin", Dose: "500mg", Instructions: medication.DefaultField,
			Times: []string{"07:30", "07:30"}, CreatedAt: medication.Timestamp(at.Add(time.Minute)),
		},
	}
}

func testEntry(name string, taken bool) medication.LogEntry {
	return medication.LogEntry{
		Medicine:      name,
		ScheduledTime: "2026-02-14 08:00",
		RespondedAt:   medication.Timestamp(time.Date(2026, 2, 14, 8, 0, 42, 0, time.Local)),
		Taken:         taken,
	}
}
