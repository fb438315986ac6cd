package pricing

import (
	"sync"
	"time"
)

type cachedSnapshot struct {
	snap     *Snapshot
	cachedAt time.Time
}

// InMemorySnapshotCache is a thread-safe in-memory SnapshotCache keyed
// by service id.
type InMemorySnapshotCache struct {
	entries map[string]cachedSnapshot
	config  CacheConfig
	mu      sync.RWMutex
}

// NewInMemorySnapshotCache creates a new in-memory snapshot cache.
func NewInMemorySnapshotCache(config CacheConfig) *InMemorySnapshotCache {
	return &InMemorySnapshotCache{
		entries: make(map[string]cachedSnapshot),
		config:  config,
	}
}

// Get returns the cached snapshot for a service, or nil if absent or
// past its TTL.
func (c *InMemorySnapshotCache) Get(serviceID string) *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[serviceID]
	if !ok {
		return nil
	}
	if c.config.TTL > 0 && time.Since(entry.cachedAt) > c.config.TTL {
		return nil
	}
	return entry.snap
}

// Set stores a snapshot for a service.
func (c *InMemorySnapshotCache) Set(serviceID string, snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[serviceID] = cachedSnapshot{snap: snap, cachedAt: time.Now()}
}

// Invalidate drops one service's snapshot.
func (c *InMemorySnapshotCache) Invalidate(serviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, serviceID)
}

// InvalidateAll drops every cached snapshot.
func (c *InMemorySnapshotCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cachedSnapshot)
}
