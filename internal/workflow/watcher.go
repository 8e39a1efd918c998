package workflow

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/cyclone/internal/logging"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a definition file whenever it changes on disk.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *logging.Logger
	reloads  chan *Definition
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher watches the definition at path. The containing directory is
// watched so editors that save by rename are still seen.
func NewWatcher(path string, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("resolve workflow path: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		watcher:  fw,
		debounce: DefaultDebounce,
		logger:   logger,
		reloads:  make(chan *Definition, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Reloads delivers each successfully reloaded definition. Only the latest
// unread definition is kept.
func (w *Watcher) Reloads() <-chan *Definition { return w.reloads }

// Start begins watching.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops watching and releases the underlying watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)

	timer := time.NewTimer(0)
	<-timer.C
	pending := false

	for {
		select {
		case <-w.stopCh:
			timer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			timer.Reset(w.debounce)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("workflow watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	def, err := Load(w.path)
	if err != nil {
		w.logger.Error("workflow reload failed, keeping current definition", "path", w.path, "error", err)
		return
	}
	// Replace any definition the scheduler has not picked up yet.
	select {
	case <-w.reloads:
	default:
	}
	w.reloads <- def
	w.logger.Info("workflow file changed", "path", w.path)
}
