package confloader

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/darabos/katana/internal/telemetry/logger"
)

// Watcher reports changes to a set of files.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  logger.Logger

	mu        sync.RWMutex
	callbacks []func(string)
	files     map[string]struct{}
	dirs      map[string]int

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		logger:  logger.Default(),
		files:   make(map[string]struct{}),
		dirs:    make(map[string]int),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logger.Named(w.logger, "watcher")
	return w, nil
}

// Watch starts reporting changes to path. The parent directory is watched
// so editors and atomic writers that replace the file by rename are seen.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[path]; ok {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Error("failed to watch directory", "path", dir, "error", err)
			return err
		}
	}
	w.dirs[dir]++
	w.files[path] = struct{}{}
	w.logger.Debug("watching file", "path", path)
	return nil
}

// Unwatch stops reporting changes to path.
func (w *Watcher) Unwatch(path string) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[path]; !ok {
		return
	}
	delete(w.files, path)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		if err := w.watcher.Remove(dir); err != nil {
			w.logger.Debug("failed to remove directory watch", "path", dir, "error", err)
		}
	}
}

// Watching reports whether path is watched.
func (w *Watcher) Watching(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[filepath.Clean(path)]
	return ok
}

// OnChange registers a callback receiving the path of a changed file.
// Callbacks run on the watcher goroutine.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	w.logger.Debug("watcher started")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.handle(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync runs Start in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		if err != nil {
			w.logger.Error("failed to close watcher", "error", err)
		}
		w.logger.Debug("watcher stopped")
	})
	return err
}

func (w *Watcher) handle(path string) {
	path = filepath.Clean(path)

	w.mu.RLock()
	_, watched := w.files[path]
	callbacks := w.callbacks
	w.mu.RUnlock()

	if !watched {
		return
	}
	w.logger.Debug("file changed", "path", path)
	for _, cb := range callbacks {
		cb(path)
	}
}
