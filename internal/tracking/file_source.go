package tracking

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileSource emits an activity signal whenever the watched file is written.
// Writes closer together than the debounce interval produce one signal.
type FileSource struct {
	path     string
	debounce time.Duration
	now      func() time.Time

	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	errors    chan error
}

// NewFileSource watches path. The file's directory must exist.
func NewFileSource(path string, debounce time.Duration) (*FileSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	if info, err := os.Stat(filepath.Dir(abs)); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("watch directory of %s: not a directory", path)
	}
	return &FileSource{
		path:     abs,
		debounce: debounce,
		now:      time.Now,
		errors:   make(chan error, 10),
	}, nil
}

// Path returns the absolute path of the watched file.
func (f *FileSource) Path() string { return f.path }

// Errors returns watcher errors. It is never closed.
func (f *FileSource) Errors() <-chan error { return f.errors }

func (f *FileSource) Attach(h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fsWatcher != nil {
		return ErrAlreadyRunning
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors often save by rename, so watch the directory rather than the file.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	f.fsWatcher = w
	f.done = make(chan struct{})
	f.wg.Add(1)
	go f.eventLoop(w, f.done, h)
	return nil
}

func (f *FileSource) Detach() error {
	f.mu.Lock()
	w := f.fsWatcher
	if w == nil {
		f.mu.Unlock()
		return ErrNotRunning
	}
	f.fsWatcher = nil
	close(f.done)
	f.mu.Unlock()

	f.wg.Wait()
	return w.Close()
}

func (f *FileSource) eventLoop(w *fsnotify.Watcher, done <-chan struct{}, h Handler) {
	defer f.wg.Done()

	var last time.Time
	for {
		select {
		case <-done:
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			now := f.now()
			if !last.IsZero() && now.Sub(last) < f.debounce {
				continue
			}
			last = now
			h(Signal{Kind: SignalActivity, Time: now})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			select {
			case f.errors <- err:
			default:
			}
		}
	}
}
