// Package fscache provides a short-TTL cache of directory existence checks.
// The watch pipeline probes "does this folder still exist" on every dispatch
// cycle and before every watch registration; caching those probes keeps the
// hot path off the filesystem. Entries expire pull-based: a stale entry is
// re-verified on the next query, never evicted proactively.
package fscache

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pictree/pictree/internal/pathutil"
)

type entry struct {
	exists    bool
	checkedAt time.Time
}

// Cache answers directory-existence queries with a bounded staleness window.
// Safe for concurrent use from watch goroutines and the consumer context.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	logger  *slog.Logger

	// now is replaceable in tests to step through TTL expiry.
	now func() time.Time
}

// New creates an empty Cache whose entries are valid for ttl.
func New(ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// DirectoryExists reports whether path is an existing directory. A cache hit
// within the TTL is returned as-is; otherwise the filesystem is probed and
// the result stored. bypass forces a live probe regardless of cache state —
// used right before attaching a watch, where a stale positive would register
// a watch on a directory that is already gone.
func (c *Cache) DirectoryExists(path string, bypass bool) bool {
	key := pathutil.Fold(path)

	if !bypass {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()

		if ok && c.now().Sub(e.checkedAt) < c.ttl {
			return e.exists
		}
	}

	exists := probeDirectory(path)

	c.mu.Lock()
	c.entries[key] = entry{exists: exists, checkedAt: c.now()}
	c.mu.Unlock()

	return exists
}

// HasSubdirectories reports whether path contains at least one subdirectory.
// Never cached: expander-placeholder correctness in the consumer depends on a
// live answer. Access-denied is treated as "assume true" (show an expander
// rather than silently hide children); any other failure as "assume false".
func (c *Cache) HasSubdirectories(path string) bool {
	entries, err := os.ReadDir(pathutil.Normalize(path))
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return true
		}

		c.logger.Debug("subdirectory probe failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return false
	}

	for _, e := range entries {
		if e.IsDir() {
			return true
		}
	}

	return false
}

// Invalidate removes the entry for path. With recursive set, every cached
// entry at or below path is removed as well, so a deleted subtree cannot
// leave stale positives behind.
func (c *Cache) Invalidate(path string, recursive bool) {
	key := pathutil.Fold(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	if !recursive {
		return
	}

	for k := range c.entries {
		if pathutil.IsWithin(key, k) {
			delete(c.entries, k)
		}
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}

// Len returns the number of cached entries (valid or expired).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// probeDirectory is the live filesystem check behind DirectoryExists.
func probeDirectory(path string) bool {
	info, err := os.Stat(pathutil.Normalize(path))

	return err == nil && info.IsDir()
}
