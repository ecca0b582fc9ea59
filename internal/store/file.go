package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/dosewatch/internal/medication"
)

// FileStore keeps each collection as an indented JSON array in its own file.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir. The directory is created
// on the first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file backing kind.
func (s *FileStore) Path(kind Kind) string {
	return filepath.Join(s.dir, string(kind)+".json")
}

// Load reads the collection file. A missing file yields no records; an
// undecodable file is logged and yields no records.
func (s *FileStore) Load(ctx context.Context, kind Kind) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		warnCorrupt(kind, err)
		return nil, nil
	}
	return records, nil
}

// Save writes the collection to a temporary file and renames it over the
// previous one.
func (s *FileStore) Save(ctx context.Context, kind Kind, records []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []json.RawMessage{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("save %s: create dir: %w", kind, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+string(kind)+"-*.json")
	if err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: write: %w", kind, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: sync: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: close: %w", kind, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(kind)); err != nil {
		return fmt.Errorf("save %s: rename: %w", kind, err)
	}
	return nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error { return nil }

func warnCorrupt(kind Kind, cause error) {
	err := medication.NewCorruptStoreError(string(kind), cause)
	slog.Warn("treating corrupt collection as empty",
		"kind", kind,
		"code", err.Code,
		"error", err,
	)
}

func joinPath(dir, name string) string {
	return filepath.Join(dir, name)
}
