package journal

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches the entries directory and invokes callbacks when entry files
// change or disappear, so the index stays current when files are edited outside
// the API (synced from another machine, edited by hand).
type Watcher struct {
	dir         string
	onChange    func(entryID string)
	onRemove    func(entryID string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher over the entries directory. onChange and onRemove
// receive the entry ID derived from the file name.
func NewWatcher(dir string, onChange, onRemove func(entryID string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:         dir,
		onChange:    onChange,
		onRemove:    onRemove,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if w.logger != nil {
		w.logger.Debug("entry watcher starting", zap.String("dir", w.dir))
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("entry watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if strings.HasSuffix(path, ".tmp") {
		return
	}
	id := EntryIDFromPath(path)
	if id == "" {
		return
	}
	if w.logger != nil {
		w.logger.Debug("entry watcher event", zap.String("op", ev.Op.String()), zap.String("path", filepath.Base(path)))
	}
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		w.debounceChange(id)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelDebounce(id)
		if w.onRemove != nil {
			w.onRemove(id)
		}
	}
}

func (w *Watcher) debounceChange(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[id]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, id)
		logger := w.logger
		w.mu.Unlock()
		if logger != nil {
			logger.Debug("entry watcher reindexing (debounced)", zap.String("entry_id", id))
		}
		if w.onChange != nil {
			w.onChange(id)
		}
	})
	w.debounceMap[id] = t
}

func (w *Watcher) cancelDebounce(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[id]; ok {
		t.Stop()
		delete(w.debounceMap, id)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for id, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, id)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
