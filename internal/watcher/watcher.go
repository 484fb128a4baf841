// Package watcher reports, debounced, when one of a set of files changes.
// shctl watch uses it for the scene file and the config file.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/subjecthierarchy/internal/log"
)

// Change names a watched file that was written and then left alone for
// the debounce interval.
type Change struct {
	Path string
}

type Config struct {
	Paths    []string
	Debounce time.Duration
}

// DefaultConfig watches paths with a 250ms debounce.
func DefaultConfig(paths ...string) Config {
	return Config{Paths: paths, Debounce: 250 * time.Millisecond}
}

type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]string // cleaned path -> path as given
	debounce time.Duration
	changes  chan Change
	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("watcher: no files to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		files:    make(map[string]string, len(cfg.Paths)),
		debounce: cfg.Debounce,
		changes:  make(chan Change, len(cfg.Paths)),
		stop:     make(chan struct{}),
	}
	for _, p := range cfg.Paths {
		w.files[filepath.Clean(p)] = p
	}
	return w, nil
}

// Start watches the directories holding the files, so a save that renames
// a temp file over the original is seen too. The channel is closed once
// ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) (<-chan Change, error) {
	var dirs []string
	for clean := range w.files {
		if d := filepath.Dir(clean); !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	for _, d := range dirs {
		if err := w.fs.Add(d); err != nil {
			return nil, fmt.Errorf("watching directory %s: %w", d, err)
		}
	}
	log.Debug(log.CatWatcher, "watching", "files", len(w.files), "debounce", w.debounce)

	go w.loop(ctx)
	return w.changes, nil
}

// Stop ends the watch and releases the fsnotify watcher. It is safe to
// call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.changes)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := make(map[string]bool)

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			path, watched := w.files[filepath.Clean(ev.Name)]
			if !watched || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			pending[path] = true
			timer.Reset(w.debounce)

		case <-timer.C:
			for path := range pending {
				select {
				case w.changes <- Change{Path: path}:
					delete(pending, path)
					log.Debug(log.CatWatcher, "file changed", "path", path)
				default:
				}
			}
			// The reader is behind; retry what it has not taken yet.
			if len(pending) > 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err)

		case <-ctx.Done():
			return
		case <-w.stop:
			return
		}
	}
}
