package core

import (
	"testing"
)

func TestResultCacheKeyIsStable(t *testing.T) {
	cache, err := NewResultCache(0)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	a, err := cache.Key("rollup", []string{"a", "b"}, 1)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	b, _ := cache.Key("rollup", []string{"a", "b"}, 1)
	c, _ := cache.Key("trends", []string{"a", "b"}, 1)
	d, _ := cache.Key("rollup", []string{"a", "b"}, 2)
	if a != b {
		t.Fatalf("expected identical inputs to share a key")
	}
	if a == c || a == d {
		t.Fatalf("expected operation and inputs to change the key")
	}
	if _, err := cache.Key("bad", func() {}); err == nil {
		t.Fatalf("expected unencodable input to fail")
	}
}

func TestMemoize(t *testing.T) {
	cache, err := NewResultCache(2)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	calls := 0
	compute := func() int {
		calls++
		return 42
	}
	for i := 0; i < 3; i++ {
		if got := memoize(cache, "answer", compute, "x"); got != 42 {
			t.Fatalf("unexpected value %d", got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single computation, got %d", calls)
	}
	if stats := cache.Stats(); stats.Hits != 2 || stats.Misses != 1 || stats.Size != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	memoize(cache, "answer", compute, func() {})
	if calls != 2 || cache.Stats().Size != 1 {
		t.Fatalf("expected unencodable inputs to bypass the cache")
	}
	memoize[int](nil, "answer", compute, "x")
	if calls != 3 {
		t.Fatalf("expected nil cache to compute directly")
	}

	// A different result type under the same key is recomputed.
	if got := memoize(cache, "answer", func() string { return "s" }, "x"); got != "s" {
		t.Fatalf("unexpected value %q", got)
	}

	cache.Purge()
	if cache.Stats().Size != 0 {
		t.Fatalf("expected purge to empty the cache")
	}
}
