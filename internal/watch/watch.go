// Package watch re-runs a task when files under the watched paths change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eegrasp/graspci/internal/logfields"
)

// TaskFunc is the work triggered by a change.
type TaskFunc func(ctx context.Context) error

// ignoredDirs are never watched.
var ignoredDirs = map[string]struct{}{
	".git": {}, "__pycache__": {}, ".pytest_cache": {}, ".venv": {}, "venv": {},
	"build": {}, "dist": {}, "htmlcov": {}, "_build": {}, "datasets": {},
}

// ignoredSuffixes are editor and interpreter droppings.
var ignoredSuffixes = []string{".pyc", ".pyo", ".swp", ".swx", "~", ".tmp", ".part"}

// Watcher debounces filesystem events and runs one task at a time.
// Changes seen while the task runs coalesce into a single re-run.
type Watcher struct {
	paths      []string
	debounce   time.Duration
	task       TaskFunc
	initialRun bool
	onResult   func(err error)
	watcher    *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInitialRun runs the task once before waiting for changes.
func WithInitialRun() Option {
	return func(w *Watcher) { w.initialRun = true }
}

// WithResultHook is called after every task run.
func WithResultHook(fn func(err error)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// New creates a watcher over paths. Directories are watched recursively; missing paths are skipped.
func New(paths []string, debounce time.Duration, task TaskFunc, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{paths: paths, debounce: debounce, task: task, watcher: fw}
	for _, opt := range opts {
		opt(w)
	}
	if w.debounce <= 0 {
		w.debounce = 2 * time.Second
	}

	added := 0
	for _, p := range paths {
		n, err := w.addTree(p)
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
		added += n
	}
	if added == 0 {
		_ = fw.Close()
		return nil, fmt.Errorf("none of the watch paths exist: %s", strings.Join(paths, ", "))
	}
	return w, nil
}

func (w *Watcher) addTree(root string) (int, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		slog.Warn("Watch path does not exist", logfields.Path(root))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		if err := w.watcher.Add(filepath.Dir(root)); err != nil {
			return 0, fmt.Errorf("failed to watch %s: %w", root, err)
		}
		return 1, nil
	}

	n := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isIgnoredDir(d.Name()) {
			return fs.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		n++
		return nil
	})
	return n, err
}

func isIgnoredDir(name string) bool {
	if _, ok := ignoredDirs[name]; ok {
		return true
	}
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".egg-info")
}

func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	for _, s := range ignoredSuffixes {
		if strings.HasSuffix(base, s) {
			return false
		}
	}
	_, ignored := ignoredDirs[base]
	return !ignored
}

// Run blocks until ctx is cancelled. A task still running at cancellation is waited for.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()
	slog.Info("Watching for changes", slog.Any("paths", w.paths), logfields.Duration(w.debounce))

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		done    chan error
		running bool
		pending bool
	)
	start := func() {
		running = true
		done = make(chan error, 1)
		go func(ch chan<- error) { ch <- w.task(ctx) }(done)
	}
	if w.initialRun {
		start()
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if running {
				<-done
			}
			slog.Info("Watch stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isIgnoredDir(info.Name()) {
					if _, err := w.addTree(event.Name); err != nil {
						slog.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
					}
				}
			}
			if !relevant(event) {
				continue
			}
			slog.Debug("Change detected", logfields.File(event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if running {
				pending = true
				continue
			}
			start()

		case err := <-done:
			running = false
			done = nil
			if w.onResult != nil {
				w.onResult(err)
			}
			if err != nil && ctx.Err() == nil {
				slog.Error("Task failed, waiting for changes", logfields.Error(err))
			} else if err == nil {
				slog.Info("Task succeeded, waiting for changes")
			}
			if pending && ctx.Err() == nil {
				pending = false
				start()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}
