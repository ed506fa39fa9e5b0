// Package metadata reads and writes per-folder sidecar records (tags plus a
// 0–5 rating) and caches them keyed by normalized folder path. A cache entry
// is valid only while the sidecar's on-disk modification time is not newer
// than the one recorded at cache time; external edits invalidate lazily on
// the next read. Metadata is best-effort: read failures degrade to empty
// values and a log line, never an error to the caller.
package metadata

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pictree/pictree/internal/pathutil"
)

// DefaultSidecarName is the hidden filename used when none is configured.
const DefaultSidecarName = ".foldertags"

// sidecarMode keeps the sidecar private to the owner; the folder itself
// already gates visibility for other users.
const sidecarMode = 0o600

type cacheEntry struct {
	tags   []string
	rating int
	mtime  time.Time
}

// Store is the metadata service. All methods are safe for concurrent use.
type Store struct {
	mu             sync.Mutex
	cache          map[string]cacheEntry
	cachingEnabled bool
	sidecarName    string
	logger         *slog.Logger
}

// NewStore creates a Store with caching enabled. sidecarName may be empty,
// in which case DefaultSidecarName is used.
func NewStore(sidecarName string, logger *slog.Logger) *Store {
	if sidecarName == "" {
		sidecarName = DefaultSidecarName
	}

	return &Store{
		cache:          make(map[string]cacheEntry),
		cachingEnabled: true,
		sidecarName:    sidecarName,
		logger:         logger,
	}
}

// SidecarPath returns the sidecar file path for a folder.
func (s *Store) SidecarPath(folder string) string {
	return filepath.Join(pathutil.Normalize(folder), s.sidecarName)
}

// GetTags returns the folder's tags. A missing or unreadable sidecar yields
// an empty set; this is not an error.
func (s *Store) GetTags(folder string) []string {
	tags, _ := s.load(folder)

	return tags
}

// GetRating returns the folder's rating in [0,5]. Missing sidecar yields 0.
func (s *Store) GetRating(folder string) int {
	_, rating := s.load(folder)

	return rating
}

// SetTagsAndRating normalizes tags, clamps the rating, writes the sidecar
// (creating the folder if absent), and refreshes the cache entry. Directory
// creation or write failure is fatal to this call only.
func (s *Store) SetTagsAndRating(folder string, tags []string, rating int) error {
	folder = pathutil.Normalize(folder)
	tags = normalizeTags(tags)
	rating = clampRating(rating)

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("metadata: creating folder %s: %w", folder, err)
	}

	sidecar := s.SidecarPath(folder)
	content := encodeSidecar(tags, rating)

	if err := os.WriteFile(sidecar, []byte(content), sidecarMode); err != nil {
		return fmt.Errorf("metadata: writing sidecar %s: %w", sidecar, err)
	}

	s.storeEntry(folder, sidecar, tags, rating)

	s.logger.Debug("metadata written",
		slog.String("folder", folder),
		slog.Int("tags", len(tags)),
		slog.Int("rating", rating),
	)

	return nil
}

// MoveMetadata copies source's tags and rating to destination and drops the
// source cache entry. The source sidecar file itself is left in place —
// file-move semantics are the caller's decision.
func (s *Store) MoveMetadata(source, destination string) error {
	tags, rating := s.load(source)

	if err := s.SetTagsAndRating(destination, tags, rating); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, pathutil.Fold(source))
	s.mu.Unlock()

	return nil
}

// CopyMetadata writes source's tags and rating to destination, leaving the
// source sidecar and its cache entry untouched.
func (s *Store) CopyMetadata(source, destination string) error {
	tags, rating := s.load(source)

	return s.SetTagsAndRating(destination, tags, rating)
}

// RenameTagEverywhere replaces oldTag with newTag (case-insensitive match)
// in every candidate folder that carries it, re-deduplicating after the
// substitution. Per-folder write failures are logged and skipped. After the
// batch the entire cache is cleared — a global rename invalidates everything
// more cheaply than tracking per-path dependents. Returns the number of
// folders actually rewritten.
func (s *Store) RenameTagEverywhere(oldTag, newTag string, candidates []string) int {
	changed := 0

	for _, folder := range candidates {
		tags, rating := s.load(folder)

		replaced := false

		for i, tag := range tags {
			if strings.EqualFold(tag, oldTag) {
				tags[i] = newTag
				replaced = true
			}
		}

		if !replaced {
			continue
		}

		if err := s.SetTagsAndRating(folder, tags, rating); err != nil {
			s.logger.Warn("tag rename failed for folder",
				slog.String("folder", folder),
				slog.String("error", err.Error()),
			)

			continue
		}

		changed++
	}

	s.ClearCache()

	s.logger.Info("tag renamed",
		slog.String("old", oldTag),
		slog.String("new", newTag),
		slog.Int("folders", changed),
	)

	return changed
}

// SetCachingEnabled toggles the read cache and returns the previous setting.
// Disabling also clears existing entries so a later re-enable cannot serve
// records cached before the bulk operation.
func (s *Store) SetCachingEnabled(enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cachingEnabled
	s.cachingEnabled = enabled

	if !enabled {
		s.cache = make(map[string]cacheEntry)
	}

	return prev
}

// WithCachingDisabled runs fn with the cache disabled and restores the prior
// setting afterward, even when fn panics. Bulk recursive scans use this so
// thousands of one-shot reads do not populate the cache.
func (s *Store) WithCachingDisabled(fn func() error) error {
	prev := s.SetCachingEnabled(false)
	defer s.SetCachingEnabled(prev)

	return fn()
}

// ClearCache drops all cached records.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string]cacheEntry)
}

// load returns the folder's tags and rating, serving from cache when the
// entry is still valid against the sidecar's on-disk mtime.
func (s *Store) load(folder string) ([]string, int) {
	folder = pathutil.Normalize(folder)
	sidecar := s.SidecarPath(folder)
	key := pathutil.Fold(folder)

	s.mu.Lock()
	enabled := s.cachingEnabled
	e, cached := s.cache[key]
	s.mu.Unlock()

	if enabled && cached {
		if info, err := os.Stat(sidecar); err == nil && !info.ModTime().After(e.mtime) {
			return cloneTags(e.tags), e.rating
		}
	}

	data, err := os.ReadFile(sidecar)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("sidecar read failed",
				slog.String("path", sidecar),
				slog.String("error", err.Error()),
			)
		}

		// Missing sidecar is the common case for untagged folders.
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()

		return nil, 0
	}

	tags, rating := decodeSidecar(string(data))

	if enabled {
		s.storeEntry(folder, sidecar, tags, rating)
	}

	return cloneTags(tags), rating
}

// storeEntry caches a record along with the sidecar's current mtime. If the
// stat fails the entry is dropped instead, forcing a re-read next time.
func (s *Store) storeEntry(folder, sidecar string, tags []string, rating int) {
	key := pathutil.Fold(folder)

	info, err := os.Stat(sidecar)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil || !s.cachingEnabled {
		delete(s.cache, key)
		return
	}

	s.cache[key] = cacheEntry{tags: cloneTags(tags), rating: rating, mtime: info.ModTime()}
}

// CacheLen returns the number of cached records.
func (s *Store) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.cache)
}

// cloneTags copies a tag slice so cache entries never alias caller slices.
func cloneTags(tags []string) []string {
	if tags == nil {
		return nil
	}

	out := make([]string, len(tags))
	copy(out, tags)

	return out
}
