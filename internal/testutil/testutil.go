// Package testutil provides shared helpers for sortify tests.
package testutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/arvidh/sortify/internal/database"
	"github.com/arvidh/sortify/internal/history"
)

// NewStore creates a history store backed by a temporary database. The
// manager is closed when the test ends.
func NewStore(t *testing.T) *history.Store {
	t.Helper()

	dir := t.TempDir()
	mgr := database.NewManager(filepath.Join(dir, "history.db"))
	t.Cleanup(mgr.CloseAll)

	store, err := history.NewStore(mgr, dir)
	if err != nil {
		t.Fatalf("failed to create history store: %v", err)
	}
	return store
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WriteTree writes a set of files under root. Keys are slash-separated
// relative paths, values are contents.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CaptureOutput captures stdout and stderr from a function.
func CaptureOutput(fn func(out, errOut io.Writer)) (stdout, stderr string) {
	var outBuf, errBuf bytes.Buffer
	fn(&outBuf, &errBuf)
	return outBuf.String(), errBuf.String()
}
