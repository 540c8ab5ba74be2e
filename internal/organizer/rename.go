package organizer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arvidh/sortify/internal/fsutil"
	"github.com/arvidh/sortify/internal/history"
)

// Rename renames a single file in place and logs it. The new name keeps
// the directory; conflicts get numbered like everywhere else.
func (e *Executor) Rename(path, newName string) (string, error) {
	dst := ConflictFree(filepath.Join(filepath.Dir(path), newName))

	name := filepath.Base(path)
	size := fsutil.FileSize(path)

	if err := os.Rename(path, dst); err != nil {
		e.store.AddEntry(name, path, "error: "+err.Error(), size, history.OpRename, history.StatusFailed)
		return "", fmt.Errorf("rename of %s failed: %w", path, err)
	}

	if _, ok := e.store.AddEntry(name, path, dst, size, history.OpRename, history.StatusSuccess); !ok {
		log.Printf("rename of %s succeeded but could not be logged", path)
	}
	return dst, nil
}

// BatchPattern describes how batch-renamed files get their new names.
// {name} is the original stem, {ext} the extension with dot, {n} the
// 1-based position in the sorted batch, {date} and {time} the moment of
// the batch. Prefixes and suffixes are just literal text around the
// placeholders.
type BatchPattern struct {
	Template string
	Start    int // first value of {n}, default 1
}

// BatchRenameResult reports one file of a batch.
type BatchRenameResult struct {
	OldPath string
	NewPath string
	Err     error
}

// BatchRename renames every file matching glob in dir according to the
// pattern, in sorted name order so {n} is deterministic. Each rename is
// logged individually under the current session; callers wrap the batch
// in StartSession/EndSession to undo it as a unit.
func (e *Executor) BatchRename(dir, glob string, pattern BatchPattern) ([]BatchRenameResult, error) {
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("bad rename pattern %q: %w", glob, err)
	}
	sort.Strings(matches)

	start := pattern.Start
	if start == 0 {
		start = 1
	}

	now := time.Now()

	var results []BatchRenameResult
	n := start
	for _, path := range matches {
		if !fsutil.FileExists(path) {
			continue
		}
		base := filepath.Base(path)
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)

		newName := pattern.Template
		newName = strings.ReplaceAll(newName, "{name}", stem)
		newName = strings.ReplaceAll(newName, "{ext}", ext)
		newName = strings.ReplaceAll(newName, "{n}", fmt.Sprintf("%d", n))
		newName = strings.ReplaceAll(newName, "{date}", now.Format("2006-01-02"))
		newName = strings.ReplaceAll(newName, "{time}", now.Format("150405"))
		n++

		if newName == base {
			continue
		}

		dst := ConflictFree(filepath.Join(dir, newName))
		size := fsutil.FileSize(path)

		result := BatchRenameResult{OldPath: path, NewPath: dst}
		if err := os.Rename(path, dst); err != nil {
			result.Err = err
			e.store.AddEntry(base, path, "error: "+err.Error(), size, history.OpBatchRename, history.StatusFailed)
		} else {
			e.store.AddEntry(base, path, dst, size, history.OpBatchRename, history.StatusSuccess)
		}
		results = append(results, result)
	}
	return results, nil
}
