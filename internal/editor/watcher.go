package editor

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/playground/internal/logging"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to end.
const DefaultDebounce = 50 * time.Millisecond

// Watcher hands the content of a file to an apply function whenever the file
// is saved. Many editors produce several events per save; they are debounced.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	apply    func(source string)
	debounce time.Duration
	logger   *logging.Logger

	// onError receives read failures; nil means log only.
	onError func(error)

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher for path. The parent directory is watched so
// that editors replacing the file on save are still observed. apply runs on
// the watcher goroutine; callers that serialize writes to the source pass a
// function that posts the write instead of performing it.
func NewWatcher(path string, apply func(source string), debounce time.Duration, logger *logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Watcher{
		watcher:  fw,
		path:     abs,
		apply:    apply,
		debounce: debounce,
		logger:   logger.WithComponent("watcher").With("path", abs),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetErrorCallback sets the callback for read failures.
func (w *Watcher) SetErrorCallback(cb func(error)) {
	w.onError = cb
}

// Start begins watching for file changes
func (w *Watcher) Start() {
	if w.started.CompareAndSwap(false, true) {
		go w.watchLoop()
	}
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	if w.started.Load() {
		<-w.doneCh
	}
}

// watchLoop processes filesystem events
func (w *Watcher) watchLoop() {
	defer close(w.doneCh)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer
	defer debounceTimer.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			// Only care about write/create operations
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err.Error())
		}
	}
}

// reload passes the file content on. An empty read during a truncating
// save is skipped; the following write event reloads the final content.
func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("failed to read watched file", "error", err.Error())
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	if len(data) == 0 {
		return
	}
	w.logger.Debug("file changed", "bytes", len(data))
	w.apply(string(data))
}
