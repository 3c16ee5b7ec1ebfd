package store

import (
	"sync"
	"time"
)

// sequenceCache keeps per-owner sequence snapshots for a short TTL to
// avoid redundant reads during a single session. Snapshots are stored
// and returned by value so callers can never mutate a cached sequence.
type sequenceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	snapshot []StopTransition
	cachedAt time.Time
}

func newSequenceCache(ttl time.Duration) *sequenceCache {
	return &sequenceCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *sequenceCache) get(ownerID string) ([]StopTransition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[ownerID]
	if !ok || time.Since(entry.cachedAt) > c.ttl {
		return nil, false
	}

	snapshot := make([]StopTransition, len(entry.snapshot))
	copy(snapshot, entry.snapshot)
	return snapshot, true
}

func (c *sequenceCache) set(ownerID string, seq []StopTransition) {
	snapshot := make([]StopTransition, len(seq))
	copy(snapshot, seq)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ownerID] = cacheEntry{snapshot: snapshot, cachedAt: time.Now()}
}

func (c *sequenceCache) invalidate(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ownerID)
}
