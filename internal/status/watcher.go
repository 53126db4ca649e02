package status

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// defaultWatchPoll is the stat interval used when fsnotify is unavailable.
const defaultWatchPoll = 2 * time.Second

// Watcher monitors the status file's directory and signals when the file is
// created, written, removed or renamed. It watches the directory rather than
// the file so that it works before the mod has created the file.
//
// The watcher only ever sends on its events channel. It never reads the file
// contents, so the consumer stays the single reader of game state.
type Watcher struct {
	// dir is the directory containing the status file.
	dir string
	// name is the status file's base name.
	name string
	// events delivers a wake-up each time the status file changes.
	// The channel is buffered to 1 so back-to-back writes coalesce.
	events chan struct{}
	// done is closed by [Watcher.Close] to signal goroutines to exit.
	done chan struct{}
	// mu guards fsw, which the watch goroutine clears when it falls back
	// to polling.
	mu sync.Mutex
	// fsw is the underlying fsnotify watcher; nil when polling.
	fsw *fsnotify.Watcher
	// once ensures [Watcher.Close] is idempotent.
	once sync.Once
	// polling is true when the watcher has fallen back to stat-based polling.
	polling atomic.Bool
	// pollInterval is the duration between stat calls in polling mode.
	pollInterval time.Duration
}

// NewWatcher starts watching the directory that contains statusPath. It uses
// fsnotify when possible and falls back to polling every pollInterval
// (2s when zero) if the platform or directory does not allow it.
func NewWatcher(statusPath string, pollInterval time.Duration) (*Watcher, error) {
	if pollInterval <= 0 {
		pollInterval = defaultWatchPoll
	}
	abs, err := filepath.Abs(statusPath)
	if err != nil {
		return nil, fmt.Errorf("resolve status path: %w", err)
	}
	w := &Watcher{
		dir:          filepath.Dir(abs),
		name:         filepath.Base(abs),
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: pollInterval,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.startPolling()
		return w, nil
	}
	if err := fsw.Add(w.dir); err != nil {
		slog.Info("cannot watch status directory, falling back to polling", "dir", w.dir, "error", err)
		fsw.Close()
		w.startPolling()
		return w, nil
	}

	w.fsw = fsw
	go w.watch(fsw)
	return w, nil
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events returns a channel that receives a signal when the status file changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher and releases resources. It is safe to call more
// than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
			w.fsw = nil
		}
	})
	return err
}

// isStatusFile reports whether an event path names the watched file.
// Windows paths are case-insensitive, so the comparison is too.
func (w *Watcher) isStatusFile(path string) bool {
	return strings.EqualFold(filepath.Base(path), w.name)
}

// watch forwards relevant fsnotify events to the events channel. On an
// fsnotify error it closes the native watcher and switches to polling.
func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&relevant != 0 && w.isStatusFile(event.Name) {
				w.notify()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			w.mu.Lock()
			if w.fsw != nil {
				w.fsw.Close()
				w.fsw = nil
			}
			w.mu.Unlock()
			w.startPolling()
			return
		}
	}
}

// startPolling marks the watcher as polling and launches [Watcher.poll].
func (w *Watcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

// fileStamp is what polling compares between ticks.
type fileStamp struct {
	exists  bool
	modTime time.Time
	size    int64
}

// stamp stats the status file.
func (w *Watcher) stamp() fileStamp {
	info, err := os.Stat(filepath.Join(w.dir, w.name))
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, modTime: info.ModTime(), size: info.Size()}
}

// poll stats the status file every pollInterval and signals whenever its
// existence, modification time or size changes.
func (w *Watcher) poll() {
	last := w.stamp()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			cur := w.stamp()
			if cur != last {
				last = cur
				w.notify()
			}
		}
	}
}

// notify sends a single signal to the events channel. If a signal is already
// pending the call is a no-op, coalescing rapid successive changes.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
