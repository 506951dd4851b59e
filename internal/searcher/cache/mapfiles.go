// Package cache holds the two caches of the lookup path: the in-process
// cache of parsed map files and the Redis-backed cache of rendered
// suggestion messages.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/mapfile"
	"golang.org/x/sync/singleflight"
)

// Loader parses the map file at path.
type Loader func(path string) (*mapfile.MapFile, error)

// MapFileCache owns every parsed map file of the process, keyed by path.
// Entries are never invalidated against disk; Clear drops them all.
type MapFileCache struct {
	mu         sync.RWMutex
	files      map[string]*mapfile.MapFile
	generation uint64
	group      singleflight.Group
	load       Loader
	logger     *slog.Logger
	hits       atomic.Int64
	misses     atomic.Int64
	loads      atomic.Int64
}

// NewMapFileCache creates an empty cache. A nil loader means mapfile.Load.
func NewMapFileCache(load Loader) *MapFileCache {
	if load == nil {
		load = mapfile.Load
	}
	return &MapFileCache{
		files:  make(map[string]*mapfile.MapFile),
		load:   load,
		logger: slog.Default().With("component", "mapfile-cache"),
	}
}

// GetOrLoad returns the cached map file for path, parsing it on first use.
// Concurrent callers for the same uncached path share a single parse.
func (c *MapFileCache) GetOrLoad(path string) (*mapfile.MapFile, error) {
	if mf, ok := c.get(path); ok {
		c.hits.Add(1)
		return mf, nil
	}
	c.misses.Add(1)
	val, err, _ := c.group.Do(path, func() (interface{}, error) {
		c.mu.RLock()
		mf, ok := c.files[path]
		gen := c.generation
		c.mu.RUnlock()
		if ok {
			return mf, nil
		}
		mf, err := c.load(path)
		if err != nil {
			return nil, err
		}
		c.loads.Add(1)
		c.mu.Lock()
		if c.generation == gen {
			c.files[path] = mf
		}
		c.mu.Unlock()
		c.logger.Debug("map file loaded",
			"path", path,
			"channel", mf.Channel,
			"subdir", mf.Subdir,
			"entries", mf.Len(),
		)
		return mf, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*mapfile.MapFile), nil
}

func (c *MapFileCache) get(path string) (*mapfile.MapFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mf, ok := c.files[path]
	return mf, ok
}

// Clear drops every cached map file. Loads already in flight finish but are
// not stored.
func (c *MapFileCache) Clear() {
	c.mu.Lock()
	n := len(c.files)
	c.files = make(map[string]*mapfile.MapFile)
	c.generation++
	c.mu.Unlock()
	c.logger.Info("map file cache cleared", "dropped", n)
}

// Len returns the number of cached map files.
func (c *MapFileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// Stats returns hit, miss and parse counters since construction.
func (c *MapFileCache) Stats() (hits, misses, loads int64) {
	return c.hits.Load(), c.misses.Load(), c.loads.Load()
}
