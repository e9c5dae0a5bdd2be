package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache hands out the shared File instance for a path within one run.
// Concurrent Read calls for the same path share a single disk read through
// the singleflight group; whichever caller wins the flight populates the map
// and everyone gets the same *File back.
type Cache struct {
	group singleflight.Group

	mu    sync.Mutex
	files map[string]*File
}

// NewCache returns an empty per-run file cache.
func NewCache() *Cache {
	return &Cache{files: make(map[string]*File)}
}

// Read returns the File for path, loading it from disk on first reference.
// The path is normalized to absolute form so aliases of the same file share
// one instance.
func (c *Cache) Read(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	c.mu.Lock()
	if f, ok := c.files[abs]; ok {
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(abs, func() (interface{}, error) {
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		f := NewFile(abs, data)
		f.mode = info.Mode().Perm()

		c.mu.Lock()
		c.files[abs] = f
		c.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*File), nil
}

// Files returns the files loaded so far, in no particular order.
func (c *Cache) Files() []*File {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*File, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, f)
	}
	return out
}
