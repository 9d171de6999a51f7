// Package watch reports changes to files that another timelock process may
// write, such as the database and the config file.
package watch

import (
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event lists the watched files touched during one debounce window.
type Event struct {
	Paths []string
}

type Option func(*Watcher)

func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher coalesces bursts of filesystem events into single Events. Files
// are watched through their parent directory so that SQLite side files
// (-journal, -wal) and atomic renames are seen too.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	Events    chan Event
	done      chan struct{}
	stopOnce  sync.Once
	debounce  time.Duration
	logger    *log.Logger

	mu    sync.Mutex
	dirs  map[string]bool
	names map[string][]string
}

func New(debounce time.Duration, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	w := &Watcher{
		fsWatcher: fsw,
		Events:    make(chan Event, 4),
		done:      make(chan struct{}),
		debounce:  debounce,
		logger:    log.Default(),
		dirs:      make(map[string]bool),
		names:     make(map[string][]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WatchFile adds path to the watch list. The file itself need not exist yet.
func (w *Watcher) WatchFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir, base := filepath.Dir(absPath), filepath.Base(absPath)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.names[dir] = append(w.names[dir], base)
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()
	})
}

func (w *Watcher) matches(path string) bool {
	dir, base := filepath.Dir(path), filepath.Base(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, name := range w.names[dir] {
		if base == name || strings.HasPrefix(base, name+"-") {
			return true
		}
	}
	return false
}

func (w *Watcher) run() {
	defer close(w.Events)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod || !w.matches(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})
			select {
			case w.Events <- Event{Paths: paths}:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("warning: watcher: %v", err)
		}
	}
}
