// Package store provides durable, key-ordered persistence for dosewatch's two
// collections: medicines and adherence log entries.
//
// # Contract
//
// A Store loads and saves a whole collection at a time:
//   - Load of a collection that was never written returns an empty slice.
//   - Load of a collection whose content cannot be decoded logs a
//     CORRUPT_STORE warning and returns an empty slice. Losing a load is
//     preferred over blocking the application.
//   - Save replaces the collection as a single step.
//
// Single-process, single-writer use is assumed. No locking is done across
// processes.
//
// # Backends
//
//   - FileStore: one JSON array per collection ("medicines.json",
//     "logs.json") under the data directory, replaced atomically via rename.
//   - SQLiteStore: one table of (kind, pos, body) rows in "dosewatch.db",
//     with WAL mode and an append fast path.
//
// Records are JSON objects in both backends, so collections can be moved
// between them without conversion.
package store
