package config

import (
	"bytes"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Reloader keeps a loaded Config in sync with its file, so rule and
// schedule edits take effect without restarting long-running watch or
// schedule sessions. Callbacks fire only when a section those sessions
// actually consume (rules, watch, schedules) changed; edits to anything
// else are absorbed silently.
type Reloader struct {
	config  *Config
	watcher *fsnotify.Watcher

	// Editors often save by writing a temp file and renaming it over
	// the original, which silently drops a watch on the file itself.
	// The watch is on the parent directory instead, with events
	// filtered by name, and a slow modtime poll as a net for
	// filesystems where rename events get lost.
	dir      string
	file     string
	pollTick time.Duration

	digest []byte

	callbacks []func(*Config)
	stop      chan struct{}
	mu        sync.RWMutex
}

// NewReloader creates a reloader for the config's file. The config must
// have been loaded from a file.
func NewReloader(config *Config) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path := config.Path()
	return &Reloader{
		config:   config,
		watcher:  watcher,
		dir:      filepath.Dir(path),
		file:     filepath.Base(path),
		pollTick: 5 * time.Second,
		digest:   reloadDigest(config),
		stop:     make(chan struct{}),
	}, nil
}

// OnReload registers a callback for effective config changes.
func (r *Reloader) OnReload(callback func(*Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, callback)
}

// Start begins watching.
func (r *Reloader) Start() error {
	if r.config.Path() == "" {
		return nil // nothing to watch
	}

	if err := r.watcher.Add(r.dir); err != nil {
		return err
	}

	go r.watch()
	return nil
}

// Stop stops watching.
func (r *Reloader) Stop() {
	close(r.stop)
	r.watcher.Close()
}

func (r *Reloader) watch() {
	// Debounce so an editor's write-then-rename save counts once.
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	poll := time.NewTicker(r.pollTick)
	defer poll.Stop()

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != r.file {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, r.reload)
			}

		case <-poll.C:
			if r.config.HasChanged() {
				r.reload()
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config reloader error: %v", err)

		case <-r.stop:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}

// reload re-reads the file and notifies callbacks if the effective
// sections changed.
func (r *Reloader) reload() {
	if err := r.config.Reload(); err != nil {
		log.Printf("failed to reload config: %v", err)
		return
	}

	digest := reloadDigest(r.config)

	r.mu.Lock()
	changed := !bytes.Equal(digest, r.digest)
	r.digest = digest
	callbacks := make([]func(*Config), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	if !changed {
		return
	}

	log.Printf("config reloaded from %s", r.config.Path())
	for _, cb := range callbacks {
		cb(r.config)
	}
}

// reloadDigest serializes the sections whose changes matter to running
// sessions. Comparing serialized forms beats field-by-field comparison
// here: the rule tables are maps and slices.
func reloadDigest(c *Config) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	digest, err := yaml.Marshal(struct {
		Rules     RulesConfig
		Watch     WatchConfig
		Schedules []ScheduleConfig
	}{c.Rules, c.Watch, c.Schedules})
	if err != nil {
		return nil
	}
	return digest
}
