package tree

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/pictree/pictree/internal/metadata"
)

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// fakeRegistry records watch registrations.
type fakeRegistry struct {
	mu      sync.Mutex
	watched []string
}

func (f *fakeRegistry) Watch(folder string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.watched = append(f.watched, folder)
}

func (f *fakeRegistry) has(folder string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, w := range f.watched {
		if w == folder {
			return true
		}
	}

	return false
}

// buildFixture creates root/{alpha,beta/nested} with tags on alpha.
func buildFixture(t *testing.T, meta *metadata.Store) string {
	t.Helper()

	root := t.TempDir()

	for _, dir := range []string{"alpha", "beta", "beta/nested"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	if err := meta.SetTagsAndRating(filepath.Join(root, "alpha"), []string{"cats"}, 4); err != nil {
		t.Fatalf("SetTagsAndRating: %v", err)
	}

	return root
}

func TestLoadRoot(t *testing.T) {
	t.Parallel()

	meta := metadata.NewStore("", testLogger(t))
	reg := &fakeRegistry{}
	loader := NewLoader(meta, reg, testLogger(t))

	root := buildFixture(t, meta)

	node, err := loader.LoadRoot(root)
	if err != nil {
		t.Fatalf("LoadRoot: %v", err)
	}

	if node.Path != root {
		t.Errorf("Path = %q, want %q", node.Path, root)
	}

	if len(node.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(node.Children))
	}

	if node.Children[0].Name != "alpha" || node.Children[1].Name != "beta" {
		t.Errorf("children = %q, %q; want alpha, beta",
			node.Children[0].Name, node.Children[1].Name)
	}

	if !reflect.DeepEqual(node.Children[0].Tags, []string{"cats"}) {
		t.Errorf("alpha tags = %v, want [cats]", node.Children[0].Tags)
	}

	if node.Children[0].Rating != 4 {
		t.Errorf("alpha rating = %d, want 4", node.Children[0].Rating)
	}

	// Immediate children only — the nested grandchild is not loaded.
	if len(node.Children[1].Children) != 0 {
		t.Errorf("beta should have no loaded children yet")
	}

	if !reg.has(root) || !reg.has(filepath.Join(root, "alpha")) {
		t.Error("root and children should be watch targets")
	}
}

func TestLoadRoot_NotADirectory(t *testing.T) {
	t.Parallel()

	meta := metadata.NewStore("", testLogger(t))
	loader := NewLoader(meta, nil, testLogger(t))

	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := loader.LoadRoot(file); err == nil {
		t.Error("LoadRoot on a file should fail")
	}

	if _, err := loader.LoadRoot(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("LoadRoot on a missing path should fail")
	}
}

func TestLoadChildren_SkipsFiles(t *testing.T) {
	t.Parallel()

	meta := metadata.NewStore("", testLogger(t))
	loader := NewLoader(meta, nil, testLogger(t))

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "img.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	node := &FolderNode{Path: root, Name: filepath.Base(root)}
	if err := loader.LoadChildren(node); err != nil {
		t.Fatalf("LoadChildren: %v", err)
	}

	if len(node.Children) != 1 || node.Children[0].Name != "sub" {
		t.Errorf("children = %v, want [sub]", node.Children)
	}
}

func TestLoadTreeRecursively(t *testing.T) {
	t.Parallel()

	meta := metadata.NewStore("", testLogger(t))
	reg := &fakeRegistry{}
	loader := NewLoader(meta, reg, testLogger(t))

	root := buildFixture(t, meta)

	node, err := loader.LoadTreeRecursively(root)
	if err != nil {
		t.Fatalf("LoadTreeRecursively: %v", err)
	}

	if len(node.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(node.Children))
	}

	beta := node.Children[1]
	if len(beta.Children) != 1 || beta.Children[0].Name != "nested" {
		t.Errorf("beta children = %v, want [nested]", beta.Children)
	}

	if !reg.has(filepath.Join(root, "beta", "nested")) {
		t.Error("deep folders should be watch targets")
	}

	// The bulk scan must not leave one-shot reads in the metadata cache,
	// and the caching flag must be restored afterward.
	if got := meta.CacheLen(); got != 0 {
		t.Errorf("metadata cache = %d entries after scan, want 0", got)
	}

	if !meta.SetCachingEnabled(true) {
		t.Error("caching should be restored after the recursive scan")
	}
}
