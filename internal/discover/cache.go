package discover

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mcprepl/mcprepl/internal/logger"
)

var log = logger.ForComponent("discover")

// Cache resolves a starting directory to a worker socket path by walking
// up the directory tree, and memoizes results (including misses) with a
// TTL so repeated calls from the same project stay off the filesystem.
type Cache struct {
	socketName string
	ttl        time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	path       string
	found      bool
	observedAt time.Time
}

func NewCache(socketName string, ttl time.Duration) *Cache {
	return &Cache{
		socketName: socketName,
		ttl:        ttl,
		entries:    make(map[string]entry),
	}
}

// Resolve returns the socket path governing startDir, or ok=false when no
// worker socket exists anywhere above it.
func (c *Cache) Resolve(startDir string) (string, bool) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		// An unresolvable path cannot have a worker above it.
		return "", false
	}

	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[abs]; ok && now.Sub(e.observedAt) < c.ttl {
		c.mu.Unlock()
		return e.path, e.found
	}
	c.mu.Unlock()

	path, found := c.walk(abs)

	c.mu.Lock()
	c.entries[abs] = entry{path: path, found: found, observedAt: now}
	c.mu.Unlock()

	if found {
		log.Debug("resolved socket", "dir", abs, "socket", path)
	}
	return path, found
}

// walk searches abs and each parent for the socket filename, stopping at
// the filesystem root.
func (c *Cache) walk(abs string) (string, bool) {
	dir := abs
	for {
		candidate := filepath.Join(dir, c.socketName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
