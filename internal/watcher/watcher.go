// Package watcher watches a directory and organizes files as they
// arrive, once they stop changing.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/arvidh/sortify/internal/organizer"
)

// Options configures a watcher.
type Options struct {
	// Ignore holds glob patterns matched against the base name of
	// arriving files. Matching files are never organized.
	Ignore []string

	// MinAge is how old a file must be before it is considered at all.
	MinAge time.Duration

	// StableFor is how long a file's size must hold still before it
	// counts as fully written.
	StableFor time.Duration

	// MaxWait bounds how long the watcher waits for stability before
	// giving up on a file.
	MaxWait time.Duration
}

func (o *Options) fillDefaults() {
	if o.MinAge <= 0 {
		o.MinAge = time.Second
	}
	if o.StableFor <= 0 {
		o.StableFor = 500 * time.Millisecond
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 10 * time.Second
	}
}

// Watcher organizes files arriving in one directory.
type Watcher struct {
	dir  string
	root string
	org  *organizer.Organizer
	opts Options

	mu      sync.Mutex
	pending map[string]bool
	stats   Stats

	wg sync.WaitGroup
}

// Stats counts what the watcher has done since it started.
type Stats struct {
	Organized int
	Failed    int
	Skipped   int
}

// New returns a watcher that organizes files arriving in dir into
// categorized subdirectories of root.
func New(dir, root string, org *organizer.Organizer, opts Options) *Watcher {
	opts.fillDefaults()
	return &Watcher{
		dir:     dir,
		root:    root,
		org:     org,
		opts:    opts,
		pending: make(map[string]bool),
	}
}

// Run watches until ctx is canceled. Files already present when the
// watcher starts are picked up too. Returns only on cancellation or a
// watch setup failure; in-flight files are drained before returning.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	log.Printf("watching %s", w.dir)

	w.sweepExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				w.wg.Wait()
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.consider(ctx, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				w.wg.Wait()
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

// sweepExisting queues files already sitting in the directory.
func (w *Watcher) sweepExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		log.Printf("cannot sweep %s: %v", w.dir, err)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.consider(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}
}

// consider decides whether a path is worth tracking and, if so, spawns
// a goroutine that waits for stability and then organizes it. The
// pending set deduplicates the event storm a single download produces.
func (w *Watcher) consider(ctx context.Context, path string) {
	name := filepath.Base(path)
	if name == "" || name[0] == '.' {
		return
	}
	if w.Ignored(name) {
		return
	}

	w.mu.Lock()
	if w.pending[path] {
		w.mu.Unlock()
		return
	}
	w.pending[path] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}()

		if !w.waitStable(ctx, path) {
			w.count(func(s *Stats) { s.Skipped++ })
			return
		}
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			// Empty files are usually placeholders another program
			// is still about to fill.
			w.count(func(s *Stats) { s.Skipped++ })
			return
		}
		dst, err := w.org.OrganizeFile(path, w.root)
		if err != nil {
			log.Printf("watcher could not organize %s: %v", path, err)
			w.count(func(s *Stats) { s.Failed++ })
			return
		}
		log.Printf("organized %s -> %s", path, dst)
		w.count(func(s *Stats) { s.Organized++ })
	}()
}

func (w *Watcher) count(update func(*Stats)) {
	w.mu.Lock()
	update(&w.stats)
	w.mu.Unlock()
}

// Stats returns a snapshot of the watcher's counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Ignored reports whether a base name matches any ignore pattern.
// Malformed patterns are treated as non-matching.
func (w *Watcher) Ignored(name string) bool {
	for _, pattern := range w.opts.Ignore {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// waitStable polls the file until its size has held still for StableFor
// and it is at least MinAge old. Returns false when the file vanishes,
// MaxWait elapses, or ctx is canceled.
func (w *Watcher) waitStable(ctx context.Context, path string) bool {
	deadline := time.Now().Add(w.opts.MaxWait)
	interval := w.opts.StableFor / 2
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}

	var lastSize int64 = -1
	stableSince := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}

		info, err := os.Stat(path)
		if err != nil {
			return false
		}

		if info.Size() != lastSize {
			lastSize = info.Size()
			stableSince = time.Now()
		}

		oldEnough := time.Since(info.ModTime()) >= w.opts.MinAge
		stable := !stableSince.IsZero() && time.Since(stableSince) >= w.opts.StableFor
		if oldEnough && stable {
			return true
		}
		if time.Now().After(deadline) {
			log.Printf("gave up waiting for %s to stabilize", path)
			return false
		}
	}
}
