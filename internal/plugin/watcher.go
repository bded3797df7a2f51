package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	debounceDelay = 2 * time.Second
	tickInterval  = 500 * time.Millisecond
)

// Watcher requests a rescan when one of the watched folders changes. Bursts
// of events collapse into a single rescan once the folder has been quiet for
// the debounce delay.
type Watcher struct {
	rescan  func(ctx context.Context)
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	delay   time.Duration

	mu      sync.Mutex
	pending time.Time
	roots   []string
	filters map[string][]func(string) bool
	stop    chan struct{}
	once    sync.Once
}

func NewWatcher(rescan func(ctx context.Context), logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		rescan:  rescan,
		watcher: fsw,
		logger:  logger.With(zap.String("component", "watcher")),
		delay:   debounceDelay,
		filters: make(map[string][]func(string) bool),
		stop:    make(chan struct{}),
	}, nil
}

// WatchPlugins adds the roots of every Watchable plugin. Only changes the
// plugin reports interest in trigger a rescan. Missing folders are skipped.
func (w *Watcher) WatchPlugins(plugins []Plugin) {
	for _, p := range plugins {
		wp, ok := p.(Watchable)
		if !ok {
			continue
		}
		for _, root := range wp.WatchRoots() {
			if err := w.AddFiltered(root, wp.WatchesPath); err != nil {
				w.logger.Warn("cannot watch folder", zap.String("plugin", p.ID()), zap.String("path", root), zap.Error(err))
			}
		}
	}
}

// Add watches dir itself, not its subfolders. Every change in dir counts.
func (w *Watcher) Add(dir string) error {
	return w.AddFiltered(dir, nil)
}

// AddFiltered watches dir and counts only changes to paths accepted by
// match. A nil match accepts everything. A folder added more than once
// counts a change when any of its filters accepts it.
func (w *Watcher) AddFiltered(dir string, match func(path string) bool) error {
	dir = filepath.Clean(dir)

	w.mu.Lock()
	_, watched := w.filters[dir]
	w.mu.Unlock()

	if !watched {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.mu.Lock()
	if _, ok := w.filters[dir]; !ok {
		w.roots = append(w.roots, dir)
	}
	w.filters[dir] = append(w.filters[dir], match)
	w.mu.Unlock()
	return nil
}

func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// Start processes events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
	go w.processPending(ctx)

	w.logger.Info("watching for changes", zap.Strings("roots", w.Roots()))
}

func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		w.watcher.Close() //nolint:errcheck
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if isHidden(event.Name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
		return
	}

	w.mu.Lock()
	if !w.relevant(event.Name) {
		w.mu.Unlock()
		return
	}
	w.pending = time.Now()
	w.mu.Unlock()

	w.logger.Debug("detected change", zap.String("path", event.Name), zap.String("op", event.Op.String()))
}

func (w *Watcher) processPending(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if w.due(time.Now()) {
				w.rescan(ctx)
			}
		}
	}
}

// relevant reports whether a filter of path's folder accepts it. Events
// outside known folders are accepted. Callers hold mu.
func (w *Watcher) relevant(path string) bool {
	filters, ok := w.filters[filepath.Dir(path)]
	if !ok {
		return true
	}
	for _, match := range filters {
		if match == nil || match(path) {
			return true
		}
	}
	return false
}

// due reports whether a pending change has been quiet long enough, and
// clears it if so.
func (w *Watcher) due(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending.IsZero() || now.Sub(w.pending) < w.delay {
		return false
	}
	w.pending = time.Time{}
	return true
}

// isHidden matches dotfiles such as .DS_Store and in-flight cache temp files.
func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
