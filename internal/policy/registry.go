package policy

import "sync"

// CacheRegistry tracks one session policy cache per signed-in principal.
// Handlers resolve their cache here; admin mutations invalidate affected
// principals so no check runs against revoked roles.
type CacheRegistry struct {
	cfg    CacheConfig
	mu     sync.RWMutex
	caches map[string]*SessionPolicyCache
}

// NewCacheRegistry constructs an empty registry.
func NewCacheRegistry(cfg CacheConfig) *CacheRegistry {
	return &CacheRegistry{cfg: cfg, caches: make(map[string]*SessionPolicyCache)}
}

// For returns the cache for a principal, creating an uninitialized one
// on first use.
func (r *CacheRegistry) For(userID string) *SessionPolicyCache {
	r.mu.RLock()
	cache, ok := r.caches[userID]
	r.mu.RUnlock()
	if ok {
		return cache
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cache, ok = r.caches[userID]; ok {
		return cache
	}
	cache = NewSessionPolicyCache(r.cfg)
	r.caches[userID] = cache
	return cache
}

// Invalidate resets and drops the principal's cache. Called on logout
// and whenever the principal's role assignments change.
func (r *CacheRegistry) Invalidate(userID string) {
	r.mu.Lock()
	cache, ok := r.caches[userID]
	if ok {
		delete(r.caches, userID)
	}
	r.mu.Unlock()
	if ok {
		cache.Reset()
	}
}

// InvalidateAll resets and drops every cache. Called when company-wide
// policy data such as custom roles or redaction rules changes.
func (r *CacheRegistry) InvalidateAll() {
	r.mu.Lock()
	caches := r.caches
	r.caches = make(map[string]*SessionPolicyCache)
	r.mu.Unlock()
	for _, cache := range caches {
		cache.Reset()
	}
}
