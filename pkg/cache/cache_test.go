package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/deptree/pkg/deps"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	if _, hit, _ := c.Get(ctx, "missing"); hit {
		t.Fatal("Get on empty cache should miss")
	}

	if err := c.Set(ctx, "a", []byte("one"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "a")
	if err != nil || !hit || string(data) != "one" {
		t.Fatalf("Get = %q, %v, %v; want one, true, nil", data, hit, err)
	}

	// Returned slices are copies.
	data[0] = 'X'
	again, _, _ := c.Get(ctx, "a")
	if string(again) != "one" {
		t.Errorf("cached value was mutated through returned slice: %q", again)
	}

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("Get after Delete should miss")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if _, hit, _ := c.Get(ctx, "k"); !hit {
		t.Fatal("fresh entry should hit")
	}

	now = now.Add(2 * time.Minute)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped, Len() = %d", c.Len())
	}
}

func TestMemoryCacheSweepsUnreadEntries(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "short", []byte("v"), time.Second)
	_ = c.Set(ctx, "forever", []byte("v"), 0)

	now = now.Add(10 * time.Second)
	_ = c.Set(ctx, "a", []byte("v"), time.Hour)
	if c.Len() != 3 {
		t.Fatalf("no sweep within the interval, Len() = %d, want 3", c.Len())
	}

	now = now.Add(sweepInterval)
	_ = c.Set(ctx, "b", []byte("v"), time.Hour)
	if c.Len() != 3 {
		t.Errorf("expired entry should be swept, Len() = %d, want 3", c.Len())
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("entry without ttl should survive a sweep")
	}
}

func TestMemoryCacheConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%5))
			_ = c.Set(ctx, key, []byte{byte(i)}, time.Hour)
			_, _, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	if c.Len() != 5 {
		t.Errorf("Len() = %d, want 5", c.Len())
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}

	if err := c.Set(ctx, "packument:react", []byte(`{"name":"react"}`), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "packument:react")
	if err != nil || !hit {
		t.Fatalf("Get hit=%v err=%v", hit, err)
	}
	if string(data) != `{"name":"react"}` {
		t.Errorf("Get = %q", data)
	}

	// Expired entries are misses.
	_ = c.Set(ctx, "old", []byte("x"), time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "old"); hit {
		t.Error("expired file entry should miss")
	}

	if err := c.Delete(ctx, "packument:react"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "packument:react"); hit {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete of missing key should not fail: %v", err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	for _, k := range []string{"a", "b"} {
		if _, hit, _ := c.Get(ctx, k); hit {
			t.Errorf("%s should be gone after Clear", k)
		}
	}
	// Still usable.
	if err := c.Set(ctx, "c", []byte("3"), 0); err != nil {
		t.Errorf("Set after Clear: %v", err)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}

	// SHA-256 produces 64 hex chars
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.PackumentKey("@babel/core"); got != "packument:@babel/core" {
		t.Errorf("PackumentKey = %q", got)
	}

	base := TreeKeyOpts{Platform: deps.DefaultPlatform()}
	tk1 := k.TreeKey("react", "^18", base)
	if !strings.HasPrefix(tk1, "tree:") {
		t.Errorf("TreeKey should be prefixed: %s", tk1)
	}
	if tk1 != k.TreeKey("react", "^18", base) {
		t.Error("TreeKey should be deterministic")
	}

	variants := []TreeKeyOpts{
		{Platform: deps.DefaultPlatform(), TrackDepth: true},
		{Platform: deps.DefaultPlatform(), MaxDepth: 2},
		{Platform: deps.Platform{OS: "darwin", CPU: "arm64"}},
	}
	for _, v := range variants {
		if k.TreeKey("react", "^18", v) == tk1 {
			t.Errorf("TreeKeyOpts %+v should change the key", v)
		}
	}
	if k.TreeKey("react", "^17", base) == tk1 {
		t.Error("range should change the key")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "mirror:")

	if got := scoped.PackumentKey("express"); got != "mirror:packument:express" {
		t.Errorf("PackumentKey = %q", got)
	}
	if got := scoped.TreeKey("express", "", TreeKeyOpts{}); !strings.HasPrefix(got, "mirror:tree:") {
		t.Errorf("TreeKey should be prefixed: %s", got)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	if got := scoped.PackumentKey("a"); got != "prefix:packument:a" {
		t.Errorf("Unexpected key with nil inner: %s", got)
	}
}
