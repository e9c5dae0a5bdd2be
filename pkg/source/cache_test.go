package source

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCacheSharesOneInstancePerPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shared.js")
	if err := os.WriteFile(path, []byte("expect(1).toBe(2);\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := NewCache()

	const readers = 16
	files := make([]*File, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := cache.Read(path)
			if err != nil {
				t.Errorf("Read failed: %v", err)
				return
			}
			files[i] = f
		}(i)
	}
	wg.Wait()

	for i := 1; i < readers; i++ {
		if files[i] != files[0] {
			t.Fatalf("reader %d got a distinct instance", i)
		}
	}
}

func TestCacheNormalizesPathAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alias.js")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := NewCache()
	a, err := cache.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.Read(filepath.Join(dir, ".", "alias.js"))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("aliases of the same path resolved to distinct instances")
	}
}

func TestCacheReadMissingFile(t *testing.T) {
	cache := NewCache()
	if _, err := cache.Read(filepath.Join(t.TempDir(), "absent.js")); err == nil {
		t.Fatal("Read of missing file succeeded")
	}
}
