package discover

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeMarker(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, ".mcp-repl.sock")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	return path
}

func TestResolveWalksUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	marker := writeMarker(t, filepath.Join(root, "a"))

	cache := NewCache(".mcp-repl.sock", time.Minute)

	path, ok := cache.Resolve(nested)
	if !ok {
		t.Fatal("expected the marker above to be found")
	}
	if path != marker {
		t.Errorf("expected %s, got %s", marker, path)
	}
}

func TestResolveReturnsAbsentAtRoot(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(".does-not-exist-anywhere.sock", time.Minute)

	if path, ok := cache.Resolve(dir); ok {
		t.Fatalf("expected absent, got %s", path)
	}
}

func TestResolveCachesWithinTTL(t *testing.T) {
	dir := t.TempDir()
	marker := writeMarker(t, dir)

	cache := NewCache(".mcp-repl.sock", time.Minute)

	path, ok := cache.Resolve(dir)
	if !ok || path != marker {
		t.Fatalf("first resolve failed: %s %v", path, ok)
	}

	// Deleting the marker must not be observed while the entry is fresh.
	os.Remove(marker)

	path, ok = cache.Resolve(dir)
	if !ok || path != marker {
		t.Errorf("expected cached path within TTL, got %s %v", path, ok)
	}
}

func TestResolveExpiresAfterTTL(t *testing.T) {
	dir := t.TempDir()
	marker := writeMarker(t, dir)

	cache := NewCache(".mcp-repl.sock", 50*time.Millisecond)

	if _, ok := cache.Resolve(dir); !ok {
		t.Fatal("first resolve should find the marker")
	}

	os.Remove(marker)
	time.Sleep(80 * time.Millisecond)

	if path, ok := cache.Resolve(dir); ok {
		t.Errorf("expected absent after TTL, got %s", path)
	}
}

func TestResolveCachesNegativeResults(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(".mcp-repl.sock", time.Minute)

	if _, ok := cache.Resolve(dir); ok {
		t.Fatal("expected absent")
	}

	// A marker created after a fresh miss is not seen until the TTL runs out.
	writeMarker(t, dir)
	if _, ok := cache.Resolve(dir); ok {
		t.Error("expected the negative entry to be served from cache")
	}
}

func TestResolveConcurrentCallers(t *testing.T) {
	root := t.TempDir()
	cache := NewCache(".mcp-repl.sock", time.Minute)

	dirs := make([]string, 8)
	for i := range dirs {
		dir := filepath.Join(root, "proj", string(rune('a'+i)))
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		writeMarker(t, dir)
		dirs[i] = dir
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir := dirs[i%len(dirs)]
			path, ok := cache.Resolve(dir)
			if !ok || path != filepath.Join(dir, ".mcp-repl.sock") {
				t.Errorf("resolve %s returned %s %v", dir, path, ok)
			}
		}(i)
	}
	wg.Wait()
}
