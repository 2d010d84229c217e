package store

import (
	"path/filepath"
	"strings"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/logging"
)

// DefaultPath is the store location relative to the project root.
const DefaultPath = ".weft/state/weft.db"

// Open creates a Store (SQLite) at the specified path.
func Open(path string, logger *logging.Logger) (core.Store, error) {
	if path == "" {
		path = DefaultPath
	}
	// Ensure path has .db extension for SQLite
	if !strings.HasSuffix(path, ".db") {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
	}
	opts := []SQLiteStoreOption{}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	s, err := NewSQLiteStore(path, opts...)
	if err != nil {
		return nil, core.ErrPersistence("opening store", err)
	}
	return s, nil
}
