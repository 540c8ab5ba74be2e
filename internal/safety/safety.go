// Package safety gates destructive work behind confirmation, keeps
// pre-operation backups and checks undo feasibility before anything is
// touched.
package safety

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arvidh/sortify/internal/fsutil"
)

// Confirmer answers yes/no prompts. The CLI supplies a terminal-backed
// implementation; tests and --yes runs use AutoApprove.
type Confirmer interface {
	Confirm(prompt string) bool
}

// AutoApprove answers yes to everything.
type AutoApprove struct{}

func (AutoApprove) Confirm(string) bool { return true }

// Gate wraps a Confirmer with an on/off switch from configuration.
type Gate struct {
	confirmer Confirmer
	enabled   bool
}

// NewGate returns a gate. When enabled is false every check passes
// without consulting the confirmer.
func NewGate(c Confirmer, enabled bool) *Gate {
	return &Gate{confirmer: c, enabled: enabled}
}

// Allow asks for confirmation when the gate is enabled.
func (g *Gate) Allow(prompt string) bool {
	if !g.enabled {
		return true
	}
	return g.confirmer.Confirm(prompt)
}

// UndoCheck is the result of a pre-undo feasibility check.
type UndoCheck struct {
	OK     bool
	Reason string
}

// VerifyUndo checks whether moving a file back from newPath to
// originalPath can succeed: the file must still be where the operation
// left it, and the original location must be free.
func VerifyUndo(originalPath, newPath string) UndoCheck {
	if !fsutil.FileExists(newPath) {
		return UndoCheck{Reason: fmt.Sprintf("file no longer exists at %s", newPath)}
	}
	if fsutil.FileExists(originalPath) {
		return UndoCheck{Reason: fmt.Sprintf("original location %s is occupied", originalPath)}
	}
	if dir := filepath.Dir(originalPath); !fsutil.DirExists(dir) {
		// MkdirAll at undo time recreates it, so this is not fatal,
		// but a vanished parent on a read-only mount would be.
		if err := os.MkdirAll(dir, 0755); err != nil {
			return UndoCheck{Reason: fmt.Sprintf("cannot recreate original directory %s: %v", dir, err)}
		}
	}
	return UndoCheck{OK: true}
}

// Backups copies files aside before destructive operations and prunes
// old copies by age.
type Backups struct {
	dir     string
	enabled bool
}

// NewBackups returns a backup keeper rooted at dir. When enabled is
// false Keep is a no-op.
func NewBackups(dir string, enabled bool) *Backups {
	return &Backups{dir: dir, enabled: enabled}
}

// Keep copies path into the backup directory under a timestamped name
// and returns the backup path. Disabled keepers return "".
func (b *Backups) Keep(path string) (string, error) {
	if !b.enabled {
		return "", nil
	}

	name := time.Now().Format("20060102-150405") + "_" + filepath.Base(path)
	dst := filepath.Join(b.dir, name)
	if err := fsutil.CopyFile(path, dst); err != nil {
		return "", fmt.Errorf("backup of %s failed: %w", path, err)
	}
	return dst, nil
}

// CleanupOld deletes backups older than the given number of days.
// Returns how many were removed; individual failures are logged and
// skipped.
func (b *Backups) CleanupOld(days int) int {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), "_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(b.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Printf("failed to remove old backup %s: %v", path, err)
				continue
			}
			removed++
		}
	}
	return removed
}
