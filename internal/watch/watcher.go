// Package watch reruns a callback when files under a set of paths change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher monitors filesystem paths for changes and invokes a callback
// when modifications are detected. Rapid successive changes are coalesced
// into a single invocation carrying every path touched in the meantime.
type Watcher struct {
	paths    []string
	debounce time.Duration
	onChange func(changed []string)
	ignore   func(path string) bool
	log      *zap.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithIgnore drops events for paths for which ignore returns true, e.g. an
// output directory living inside the watched tree.
func WithIgnore(ignore func(path string) bool) Option {
	return func(w *Watcher) { w.ignore = ignore }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// New creates a Watcher for paths. onChange runs after changes have been
// quiet for debounce.
func New(paths []string, debounce time.Duration, onChange func(changed []string), opts ...Option) *Watcher {
	w := &Watcher{
		paths:    paths,
		debounce: debounce,
		onChange: onChange,
		ignore:   func(string) bool { return false },
		log:      zap.NewNop(),
		pending:  make(map[string]struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	w.log = w.log.Named("watch")
	return w
}

// Run watches until ctx is done. Paths that do not exist are skipped.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	w.watcher = fsw

	// fsnotify does not watch recursively, so every directory is added.
	for _, p := range w.paths {
		info, err := os.Stat(p)
		if err != nil {
			w.log.Debug("not watching missing path", zap.String("path", p))
			continue
		}
		if info.IsDir() {
			err = w.addRecursive(p)
		} else {
			err = fsw.Add(p)
		}
		if err != nil {
			w.log.Warn("failed to watch path", zap.String("path", p), zap.Error(err))
		}
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if w.ignore(event.Name) {
				continue
			}

			// New directories are watched too.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			w.mu.Lock()
			w.pending[event.Name] = struct{}{}
			w.mu.Unlock()

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.flush)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	w.log.Debug("change detected", zap.Strings("paths", changed))
	w.onChange(changed)
}

// addRecursive adds a directory and all its subdirectories to the watcher.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if w.ignore(path) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				return err
			}
		}
		return nil
	})
}
