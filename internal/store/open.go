package store

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// SQLiteFile is the database file name used under the data dir.
const SQLiteFile = "sentari.db"

// Open returns the backend named kind rooted at dataDir. An empty kind
// selects the JSONL backend.
func Open(kind, dataDir string) (Store, error) {
	switch kind {
	case "", BackendJSONL:
		return NewFile(dataDir)
	case BackendSQLite:
		return NewSQLite(filepath.Join(dataDir, SQLiteFile))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
