package authz

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

const cacheShardCount = 32

// Cache is the process-wide mapping from role id to the set of permission
// keys currently granted to that role. It starts empty, is populated lazily
// on first resolution and holds entries until explicitly invalidated; there
// is no TTL. Entries are sharded so operations on different roles do not
// contend on a single lock.
type Cache struct {
	shards [cacheShardCount]cacheShard
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]map[string]struct{}
	// gens is bumped on every invalidation so a stale recompute can never
	// overwrite a newer invalidation: on conflict, absent wins over stale.
	gens map[uuid.UUID]uint64
}

// NewCache constructs an empty permission cache.
func NewCache() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i].entries = make(map[uuid.UUID]map[string]struct{})
		c.shards[i].gens = make(map[uuid.UUID]uint64)
	}
	return c
}

func (c *Cache) shard(roleID uuid.UUID) *cacheShard {
	h := fnv.New32a()
	_, _ = h.Write(roleID[:])
	return &c.shards[h.Sum32()%cacheShardCount]
}

// Get returns the cached key set for a role, or ok=false on a miss. It never
// reaches out to the store; that is the caller's job. The returned map must
// be treated as read-only.
func (c *Cache) Get(roleID uuid.UUID) (map[string]struct{}, bool) {
	s := c.shard(roleID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, ok := s.entries[roleID]
	return keys, ok
}

// Generation returns the invalidation counter for a role's slot. Pair it
// with SetIfCurrent to make a recompute lose against a concurrent
// invalidation.
func (c *Cache) Generation(roleID uuid.UUID) uint64 {
	s := c.shard(roleID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[roleID]
}

// Set replaces the cached set for a role unconditionally and bumps the
// slot's generation, so any recompute that was in flight when this
// authoritative write landed cannot clobber it. Use it on write paths that
// have just committed the new grant set.
func (c *Cache) Set(roleID uuid.UUID, keys []string) {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	s := c.shard(roleID)
	s.mu.Lock()
	s.entries[roleID] = set
	s.gens[roleID]++
	s.mu.Unlock()
}

// SetIfCurrent stores the set only when the slot's generation still matches
// gen, reporting whether the entry was stored. A mismatch means an
// invalidation landed while the caller was fetching; the fresh absence is
// preserved.
func (c *Cache) SetIfCurrent(roleID uuid.UUID, keys []string, gen uint64) bool {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	s := c.shard(roleID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[roleID] != gen {
		return false
	}
	s.entries[roleID] = set
	return true
}

// Invalidate removes a role's entry so the next lookup misses cleanly. Every
// mutation that changes a role's grant set, or deletes the role, funnels
// through here.
func (c *Cache) Invalidate(roleID uuid.UUID) {
	s := c.shard(roleID)
	s.mu.Lock()
	delete(s.entries, roleID)
	s.gens[roleID]++
	s.mu.Unlock()
}

// Len reports the number of cached roles, for introspection and tests.
func (c *Cache) Len() int {
	total := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}
