package store

import (
	"fmt"
	"path/filepath"
)

// Backends lists the names accepted by New.
var Backends = []string{"json", "sqlite", "bolt", "badger", "memory"}

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"json"   - JSON files in dataDir (default)
//	"sqlite" - SQLite database at dataDir/records.db
//	"bolt"   - bolt database at dataDir/records.bolt
//	"badger" - badger database in dataDir/badger
//	"memory" - In-memory (ephemeral, for testing)
func New(backend, dataDir string) (Store, error) {
	switch backend {
	case "json", "":
		return NewJsonFileStore(dataDir)
	case "sqlite":
		return NewSqliteStore(filepath.Join(dataDir, "records.db"))
	case "bolt":
		return NewBoltStore(filepath.Join(dataDir, "records.bolt"))
	case "badger":
		return NewBadgerStore(filepath.Join(dataDir, "badger"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, bolt, badger, memory)", backend)
	}
}
