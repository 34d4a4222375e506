package conf

import (
	"log"
	"path/filepath"
	"sync"
)

// Registry hands out one Reader per distinct config file path. It is owned by
// the composition root and injected into consumers; closing it disposes every
// reader it created.
type Registry struct {
	logger *log.Logger

	mu      sync.Mutex
	readers map[string]*Reader
}

// NewRegistry creates an empty registry. A nil logger falls back to log.Default.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		logger:  logger,
		readers: make(map[string]*Reader),
	}
}

// Reader returns the reader for path, creating it on first request. Paths are
// cleaned so syntactic variants of the same file share one reader.
func (g *Registry) Reader(path string) *Reader {
	key := filepath.Clean(path)

	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.readers[key]; ok {
		return r
	}
	r := NewReader(key, g.logger)
	g.readers[key] = r
	return r
}

// Close disposes every reader. Idempotent.
func (g *Registry) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.readers {
		r.Close()
	}
	g.readers = make(map[string]*Reader)
}
