package pricing

import "time"

// SnapshotCache caches per-service catalog snapshots so repeated
// evaluations do not refetch an unchanged rule set. Implementations can
// be in-memory, Redis-backed, or anything else.
type SnapshotCache interface {
	// Get returns the cached snapshot for a service, or nil on miss or
	// expiry.
	Get(serviceID string) *Snapshot

	// Set stores a snapshot for a service.
	Set(serviceID string, snap *Snapshot)

	// Invalidate drops the cached snapshot for one service, forcing a
	// refetch on the next Get.
	Invalidate(serviceID string)

	// InvalidateAll drops every cached snapshot.
	InvalidateAll()
}

// CacheConfig holds configuration for snapshot cache behavior.
type CacheConfig struct {
	// TTL is the time-to-live for cached snapshots. Zero means no
	// expiration; entries live until invalidated by a catalog mutation.
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults: no TTL, invalidation
// driven by mutations only.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
