package policy

import (
	"context"
	"testing"
)

func TestRegistryReturnsStableCachePerPrincipal(t *testing.T) {
	registry := NewCacheRegistry(CacheConfig{
		Loader: &stubLoader{assignments: []RoleAssignment{captainAssignment()}},
		Logger: testLogger(),
	})

	a := registry.For("u1")
	if registry.For("u1") != a {
		t.Fatalf("same principal must resolve the same cache")
	}
	if registry.For("u2") == a {
		t.Fatalf("distinct principals must not share a cache")
	}
}

func TestRegistryInvalidateResetsCache(t *testing.T) {
	registry := NewCacheRegistry(CacheConfig{
		Loader: &stubLoader{assignments: []RoleAssignment{captainAssignment()}},
		Logger: testLogger(),
	})

	cache := registry.For("u1")
	if err := cache.Load(context.Background(), "u1", 7); err != nil {
		t.Fatalf("load: %v", err)
	}
	registry.Invalidate("u1")

	if cache.IsInitialized() {
		t.Fatalf("invalidate must reset the old cache")
	}
	if registry.For("u1") == cache {
		t.Fatalf("invalidate must drop the old cache instance")
	}
}

func TestRegistryInvalidateAll(t *testing.T) {
	registry := NewCacheRegistry(CacheConfig{
		Loader: &stubLoader{assignments: []RoleAssignment{captainAssignment()}},
		Logger: testLogger(),
	})
	c1 := registry.For("u1")
	c2 := registry.For("u2")
	if err := c1.Load(context.Background(), "u1", 7); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c2.Load(context.Background(), "u2", 7); err != nil {
		t.Fatalf("load: %v", err)
	}

	registry.InvalidateAll()
	if c1.IsInitialized() || c2.IsInitialized() {
		t.Fatalf("invalidate all must reset every cache")
	}
}
