package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Kind names a persisted collection.
type Kind string

const (
	// KindMedicines is the medicine list.
	KindMedicines Kind = "medicines"

	// KindLogs is the adherence log.
	KindLogs Kind = "logs"
)

// Store is the whole-collection record store.
type Store interface {
	// Load returns the records of kind in stored order.
	Load(ctx context.Context, kind Kind) ([]json.RawMessage, error)

	// Save replaces the records of kind.
	Save(ctx context.Context, kind Kind, records []json.RawMessage) error

	// Close releases backend resources.
	Close() error
}

// Appender is implemented by backends that can add one record without
// rewriting the collection.
type Appender interface {
	Append(ctx context.Context, kind Kind, record json.RawMessage) error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendJSON   Backend = "json"
	BackendSQLite Backend = "sqlite"
)

// ValidBackends lists the accepted backend names.
var ValidBackends = []Backend{BackendJSON, BackendSQLite}

// ParseBackend resolves a backend name, case-insensitively.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidBackends {
		if b == v {
			return b, nil
		}
	}
	return "", fmt.Errorf("invalid backend %q: must be one of %v", s, ValidBackends)
}

// SQLiteFile is the database file name inside the data directory.
const SQLiteFile = "dosewatch.db"

// Open creates the data directory if needed and opens the selected backend
// inside it.
func Open(backend Backend, dataDir string) (Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	switch backend {
	case BackendJSON, "":
		return NewFileStore(dataDir), nil
	case BackendSQLite:
		return OpenSQLite(joinPath(dataDir, SQLiteFile))
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
