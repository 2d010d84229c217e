// Package testutil holds helpers shared by package tests: temp stores,
// workflow document builders, scripts standing in for external CLIs, and
// output scrubbers.
package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/weft-dev/weft/internal/adapters/store"
)

// ErrTest is a generic test error.
var ErrTest = errors.New("test error")

// TempFile creates a file with content under dir.
func TempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("creating dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

// WriteScript writes an executable shell script and returns its path. The
// test is skipped on Windows.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

// StorePath returns a database path in a fresh temp dir.
func StorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state", "weft.db")
}

// NewStore opens a SQLite store in a temp dir, closed at cleanup.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return OpenStore(t, StorePath(t))
}

// OpenStore opens the store at path, closed at cleanup. Opening the same
// path twice models a second process.
func OpenStore(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
