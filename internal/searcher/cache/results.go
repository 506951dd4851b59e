package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const keyPrefix = "suggest:"

// Store is the subset of the Redis client the result cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ResultCache caches rendered suggestion messages per (executable, search
// path) with a TTL. Any store error is treated as a miss.
type ResultCache struct {
	store  Store
	ttl    time.Duration
	isMiss func(error) bool
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a ResultCache. isMiss reports whether a store error
// only means "key absent"; such errors are not logged.
func NewResultCache(store Store, ttl time.Duration, isMiss func(error) bool) *ResultCache {
	if isMiss == nil {
		isMiss = func(error) bool { return false }
	}
	return &ResultCache{
		store:  store,
		ttl:    ttl,
		isMiss: isMiss,
		logger: slog.Default().With("component", "result-cache"),
	}
}

func (c *ResultCache) Get(ctx context.Context, exe string, searchPath []string) (string, bool) {
	key := buildKey(exe, searchPath)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !c.isMiss(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "exe", exe, "key", key)
	return data, true
}

func (c *ResultCache) Set(ctx context.Context, exe string, searchPath []string, message string) {
	key := buildKey(exe, searchPath)
	if err := c.store.Set(ctx, key, message, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached message or computes, stores and returns
// it. Concurrent misses for the same key compute once.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	exe string,
	searchPath []string,
	computeFn func() (string, error),
) (string, bool, error) {
	if msg, ok := c.Get(ctx, exe, searchPath); ok {
		return msg, true, nil
	}
	key := buildKey(exe, searchPath)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		msg, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(context.WithoutCancel(ctx), exe, searchPath, msg)
		return msg, nil
	})
	if err != nil {
		return "", false, err
	}
	return val.(string), false, nil
}

func (c *ResultCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating result cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func buildKey(exe string, searchPath []string) string {
	raw := exe + "\x00" + strings.Join(searchPath, "\x00")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
