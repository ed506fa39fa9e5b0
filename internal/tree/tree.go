// Package tree builds the in-memory folder tree the consumer browses. Nodes
// carry the folder's tags and rating from the metadata store; loading a node
// registers it with the watch registry so later filesystem changes reach the
// consumer. Parents own their children exclusively — a node never outlives
// its parent's removal — and the core keeps no back-pointers.
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pictree/pictree/internal/metadata"
	"github.com/pictree/pictree/internal/pathutil"
)

// FolderNode is one directory in the browsed tree.
type FolderNode struct {
	Path     string
	Name     string
	Children []*FolderNode
	Tags     []string
	Rating   int
}

// Watcher is the slice of the watch registry the loader needs. A nil Watcher
// loads without registering watches (one-shot listings).
type Watcher interface {
	Watch(folder string)
}

// Loader builds folder nodes, attaching metadata and watch registrations.
type Loader struct {
	meta    *metadata.Store
	watcher Watcher
	logger  *slog.Logger
}

// NewLoader creates a Loader. watcher may be nil for unwatched loads.
func NewLoader(meta *metadata.Store, watcher Watcher, logger *slog.Logger) *Loader {
	return &Loader{
		meta:    meta,
		watcher: watcher,
		logger:  logger,
	}
}

// LoadRoot builds the root node with its immediate children and begins
// watching the root.
func (l *Loader) LoadRoot(path string) (*FolderNode, error) {
	path = pathutil.Normalize(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("tree: loading root %s: %w", path, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("tree: root %s is not a directory", path)
	}

	root := l.buildNode(path)

	if err := l.LoadChildren(root); err != nil {
		return nil, err
	}

	l.watch(path)

	return root, nil
}

// LoadChildren enumerates parent's immediate subdirectories and attaches a
// child node per entry, each registered as a watch target. Access-denied on
// the enumeration yields an empty child list, not an error.
func (l *Loader) LoadChildren(parent *FolderNode) error {
	entries, err := os.ReadDir(parent.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			l.logger.Debug("children enumeration denied", slog.String("path", parent.Path))
			return nil
		}

		return fmt.Errorf("tree: listing %s: %w", parent.Path, err)
	}

	parent.Children = parent.Children[:0]

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		child := l.buildNode(filepath.Join(parent.Path, entry.Name()))
		parent.Children = append(parent.Children, child)

		l.watch(child.Path)
	}

	sortChildren(parent)

	return nil
}

// LoadTreeRecursively depth-first walks the whole subtree under root,
// building every node and registering each as a watch target. Metadata
// caching is disabled for the duration — a bulk scan would otherwise cache
// thousands of one-shot reads — and any stale cache is cleared first. The
// prior caching setting is restored even when the walk fails partway.
// Access-denied subdirectories are skipped; any other per-directory error is
// logged and that branch abandoned while siblings continue.
func (l *Loader) LoadTreeRecursively(root string) (*FolderNode, error) {
	root = pathutil.Normalize(root)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("tree: loading subtree %s: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("tree: subtree root %s is not a directory", root)
	}

	l.meta.ClearCache()

	var node *FolderNode

	_ = l.meta.WithCachingDisabled(func() error {
		node = l.walk(root)
		return nil
	})

	return node, nil
}

// walk recursively builds the node for path and all descendants.
func (l *Loader) walk(path string) *FolderNode {
	node := l.buildNode(path)
	l.watch(path)

	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			l.logger.Debug("subtree enumeration denied", slog.String("path", path))
		} else {
			l.logger.Warn("subtree enumeration failed, branch abandoned",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}

		return node
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		node.Children = append(node.Children, l.walk(filepath.Join(path, entry.Name())))
	}

	sortChildren(node)

	return node
}

// buildNode creates a node for path with metadata attached. Metadata reads
// are best-effort: a missing or broken sidecar yields empty tags, rating 0.
func (l *Loader) buildNode(path string) *FolderNode {
	path = pathutil.Normalize(path)

	return &FolderNode{
		Path:   path,
		Name:   filepath.Base(path),
		Tags:   l.meta.GetTags(path),
		Rating: l.meta.GetRating(path),
	}
}

func (l *Loader) watch(path string) {
	if l.watcher != nil {
		l.watcher.Watch(path)
	}
}

// sortChildren keeps the child list in case-insensitive name order so
// repeated loads produce a stable tree.
func sortChildren(node *FolderNode) {
	sort.Slice(node.Children, func(i, j int) bool {
		return pathutil.Fold(node.Children[i].Name) < pathutil.Fold(node.Children[j].Name)
	})
}
