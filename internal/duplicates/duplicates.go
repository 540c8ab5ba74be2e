// Package duplicates finds files with identical content and removes the
// surplus copies. Deletions go through the history log like every other
// mutation, with the pre-delete backup recorded so they can be undone.
package duplicates

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arvidh/sortify/internal/fsutil"
	"github.com/arvidh/sortify/internal/history"
	"github.com/arvidh/sortify/internal/safety"
)

// Options bounds a duplicate scan.
type Options struct {
	// Recursive scans subdirectories too.
	Recursive bool

	// MinSize skips files smaller than this many bytes. Tiny files
	// collide constantly and are rarely worth deduplicating.
	MinSize int64

	// Extensions, when non-empty, restricts the scan to these
	// extensions (with or without the leading dot, case-insensitive).
	Extensions []string
}

// Group is a set of paths whose contents hash identically.
type Group struct {
	Hash  string   `json:"hash"`
	Size  int64    `json:"size"`
	Paths []string `json:"paths"` // sorted
}

// Stats summarizes a scan result.
type Stats struct {
	Groups      int
	Files       int
	WastedBytes int64 // bytes freed by keeping one copy per group
}

// Finder scans for duplicate content. The hash cache persists across
// scans on one Finder, so repeated scans of a slowly-changing tree only
// hash new files.
type Finder struct {
	store   *history.Store
	backups *safety.Backups
	cache   map[string]string
}

// NewFinder returns a finder that logs deletions to store. backups may
// be nil when pre-delete backups are disabled.
func NewFinder(store *history.Store, backups *safety.Backups) *Finder {
	if backups == nil {
		backups = safety.NewBackups("", false)
	}
	return &Finder{
		store:   store,
		backups: backups,
		cache:   make(map[string]string),
	}
}

// Find scans dir for files with identical content. Files are grouped by
// size first; only sizes with more than one file get hashed, so a scan
// over mostly-unique files stays cheap.
func (f *Finder) Find(dir string, opts Options) ([]Group, error) {
	bySize := make(map[int64][]string)

	collect := func(path string, size int64) {
		if size < opts.MinSize {
			return
		}
		if !matchesExtension(path, opts.Extensions) {
			return
		}
		bySize[size] = append(bySize[size], path)
	}

	if opts.Recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			collect(path, info.Size())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("cannot scan %s: %w", dir, err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("cannot scan %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			collect(filepath.Join(dir, entry.Name()), info.Size())
		}
	}

	byHash := make(map[string][]string)
	sizes := make(map[string]int64)
	for size, paths := range bySize {
		if len(paths) < 2 {
			continue
		}
		for _, path := range paths {
			hash, err := f.hash(path)
			if err != nil {
				log.Printf("could not hash %s: %v", path, err)
				continue
			}
			byHash[hash] = append(byHash[hash], path)
			sizes[hash] = size
		}
	}

	var groups []Group
	for hash, paths := range byHash {
		if len(paths) < 2 {
			continue
		}
		sort.Strings(paths)
		groups = append(groups, Group{Hash: hash, Size: sizes[hash], Paths: paths})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Paths[0] < groups[j].Paths[0]
	})
	return groups, nil
}

// Statistics computes counts and the space recoverable by keeping one
// copy per group.
func Statistics(groups []Group) Stats {
	s := Stats{Groups: len(groups)}
	for _, g := range groups {
		s.Files += len(g.Paths)
		s.WastedBytes += g.Size * int64(len(g.Paths)-1)
	}
	return s
}

// DeleteReport accounts for one delete pass.
type DeleteReport struct {
	Deleted int
	Failed  int
	Kept    []string
}

// Delete removes every file of each group except one. With keepFirst
// the first path in sort order survives, otherwise the last. Every
// deletion is backed up (when backups are enabled) and logged as a
// delete operation whose destination is the backup path, so a logged
// delete with a backup can be undone.
func (f *Finder) Delete(groups []Group, keepFirst bool) DeleteReport {
	var report DeleteReport
	for _, g := range groups {
		if len(g.Paths) < 2 {
			continue
		}
		doomed := make([]string, len(g.Paths))
		copy(doomed, g.Paths)
		var kept string
		if keepFirst {
			kept, doomed = doomed[0], doomed[1:]
		} else {
			kept, doomed = doomed[len(doomed)-1], doomed[:len(doomed)-1]
		}
		report.Kept = append(report.Kept, kept)

		for _, path := range doomed {
			if f.deleteOne(path) {
				report.Deleted++
			} else {
				report.Failed++
			}
		}
	}
	return report
}

// deleteOne backs up, removes and logs one file. The logged row's
// destination column holds the backup path; a delete without a backup
// logs an empty destination and cannot be undone.
func (f *Finder) deleteOne(path string) bool {
	name := filepath.Base(path)
	size := fsutil.FileSize(path)

	backup, err := f.backups.Keep(path)
	if err != nil {
		log.Printf("backup before delete of %s failed: %v", path, err)
		backup = ""
	}

	if err := os.Remove(path); err != nil {
		f.store.AddEntry(name, path, "error: "+err.Error(), size, history.OpDelete, history.StatusFailed)
		log.Printf("could not delete %s: %v", path, err)
		return false
	}

	if _, ok := f.store.AddEntry(name, path, backup, size, history.OpDelete, history.StatusSuccess); !ok {
		log.Printf("delete of %s succeeded but could not be logged", path)
	}
	delete(f.cache, path)
	return true
}

// hash returns the SHA-256 of a file's contents, cached per path.
func (f *Finder) hash(path string) (string, error) {
	if cached, ok := f.cache[path]; ok {
		return cached, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	f.cache[path] = sum
	return sum, nil
}

// ClearCache drops the hash cache, forcing the next scan to re-read
// every file.
func (f *Finder) ClearCache() {
	f.cache = make(map[string]string)
}

func matchesExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, want := range extensions {
		if ext == strings.ToLower(strings.TrimPrefix(want, ".")) {
			return true
		}
	}
	return false
}
