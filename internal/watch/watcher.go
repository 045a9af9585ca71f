// Package watch reports changes to files on disk, coalescing bursts of
// writes into one event.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ivlev/screenzoom/internal/system"
)

// DefaultDebounce is the quiet period after the last write before an event fires.
const DefaultDebounce = 300 * time.Millisecond

// Event reports that a watched file changed.
type Event struct {
	Path string
	Time time.Time
}

// Watcher monitors a set of files. It watches their directories so that
// editors replacing a file by rename are seen too.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	files     map[string]bool // cleaned paths
	mu        sync.RWMutex

	Events chan Event
	Errors chan error
	done   chan struct{}
	once   sync.Once
}

// NewWatcher creates a watcher for paths. debounce <= 0 uses DefaultDebounce.
func NewWatcher(debounce time.Duration, paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		files:     make(map[string]bool),
		Events:    make(chan Event, 16),
		Errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Add starts watching path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	w.mu.Lock()
	w.files[abs] = true
	w.mu.Unlock()
	return nil
}

// Start begins watching for file changes
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) watchLoop() {
	pending := make(map[string]time.Time)
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		select {
		case <-w.done:
			timer.Stop()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			path := filepath.Clean(event.Name)
			pending[path] = time.Now()
			timer.Reset(w.debounce)

		case <-timer.C:
			for path, at := range pending {
				system.Logger().Debug("watched file changed", "path", path)
				select {
				case w.Events <- Event{Path: path, Time: at}:
				default:
					// Event channel full
				}
			}
			clear(pending)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
				// Error channel full, drop
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.files[filepath.Clean(event.Name)]
}
