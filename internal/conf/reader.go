// Package conf loads the project configuration: cached per-path file readers
// with change invalidation, and a resolver that merges a root config file with
// everything it includes.
package conf

import (
	"log"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Reader reads one config file and caches its content. The first successful
// read registers a filesystem watcher on the path; a change event invalidates
// the cache so the next Read re-fetches from disk.
type Reader struct {
	path   string
	logger *log.Logger

	mu      sync.Mutex
	content string
	valid   bool
	watcher *fsnotify.Watcher
	closed  bool
}

// NewReader creates a reader for path. The watcher is registered lazily on the
// first successful Read. A nil logger falls back to log.Default.
func NewReader(path string, logger *log.Logger) *Reader {
	return &Reader{path: path, logger: logger}
}

// Path returns the file path this reader serves.
func (r *Reader) Path() string { return r.path }

// Read returns the file content, from cache when valid.
func (r *Reader) Read() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.valid {
		return r.content, nil
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return "", &IOError{Path: r.path, Err: err}
	}
	r.content = string(data)
	r.valid = true
	if r.watcher == nil && !r.closed {
		r.startWatcher()
	}
	return r.content, nil
}

// startWatcher registers the fsnotify watcher. Called with mu held. Watcher
// failures degrade to an uncached-invalidation-free reader with one logged
// line; content is still served.
func (r *Reader) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		r.logf("config watcher unavailable for %s: %v", r.path, err)
		return
	}
	if err := w.Add(r.path); err != nil {
		w.Close()
		r.logf("cannot watch config file %s: %v", r.path, err)
		return
	}
	r.watcher = w
	go r.invalidateLoop(w)
}

// invalidateLoop consumes watcher events until the watcher closes. Any change
// event resets the cache so the next Read re-fetches.
func (r *Reader) invalidateLoop(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
				ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				r.mu.Lock()
				r.content = ""
				r.valid = false
				r.mu.Unlock()
				// Editors often replace files on save; re-arm the watch so
				// the new inode is covered.
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					_ = w.Add(r.path)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			// Non-fatal; keep watching.
			r.logf("config watcher error for %s: %v", r.path, err)
		}
	}
}

// Invalidate drops the cached content so the next Read re-fetches.
func (r *Reader) Invalidate() {
	r.mu.Lock()
	r.content = ""
	r.valid = false
	r.mu.Unlock()
}

// Close removes the watcher. Idempotent. The cached content stays readable.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

func (r *Reader) logf(format string, args ...any) {
	l := r.logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}
