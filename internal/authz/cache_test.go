package authz

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStartsEmpty(t *testing.T) {
	c := NewCache()

	_, ok := c.Get(uuid.New())
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheSetAndGet(t *testing.T) {
	c := NewCache()
	roleID := uuid.New()

	c.Set(roleID, []string{"ROLE_VIEW", "ROLE_CREATE"})

	keys, ok := c.Get(roleID)
	require.True(t, ok)
	assert.Contains(t, keys, "ROLE_VIEW")
	assert.Contains(t, keys, "ROLE_CREATE")
	assert.Len(t, keys, 2)
}

func TestCacheEmptySetIsCachedNotMissing(t *testing.T) {
	c := NewCache()
	roleID := uuid.New()

	c.Set(roleID, nil)

	keys, ok := c.Get(roleID)
	require.True(t, ok, "a role with zero grants must hit, not miss")
	assert.Empty(t, keys)
}

func TestCacheInvalidateRemovesOnlyTargetRole(t *testing.T) {
	c := NewCache()
	a, b := uuid.New(), uuid.New()
	c.Set(a, []string{"X"})
	c.Set(b, []string{"Y"})

	c.Invalidate(a)

	_, ok := c.Get(a)
	assert.False(t, ok)
	_, ok = c.Get(b)
	assert.True(t, ok)
}

func TestCacheInvalidateUnknownRoleIsNoop(t *testing.T) {
	c := NewCache()
	c.Invalidate(uuid.New())
	assert.Equal(t, 0, c.Len())
}

func TestCacheSetIfCurrentLosesToInvalidation(t *testing.T) {
	c := NewCache()
	roleID := uuid.New()

	gen := c.Generation(roleID)
	// Invalidation lands while a recompute is in flight.
	c.Invalidate(roleID)

	stored := c.SetIfCurrent(roleID, []string{"STALE"}, gen)
	assert.False(t, stored)
	_, ok := c.Get(roleID)
	assert.False(t, ok, "stale recompute must not resurrect the entry")
}

func TestCacheSetIfCurrentLosesToAuthoritativeSet(t *testing.T) {
	c := NewCache()
	roleID := uuid.New()

	gen := c.Generation(roleID)
	// A write path committed a fresh grant set mid-fetch.
	c.Set(roleID, []string{"FRESH"})

	stored := c.SetIfCurrent(roleID, []string{"STALE"}, gen)
	assert.False(t, stored)

	keys, ok := c.Get(roleID)
	require.True(t, ok)
	assert.Contains(t, keys, "FRESH")
	assert.NotContains(t, keys, "STALE")
}

func TestCacheSetIfCurrentStoresWhenUncontended(t *testing.T) {
	c := NewCache()
	roleID := uuid.New()

	gen := c.Generation(roleID)
	stored := c.SetIfCurrent(roleID, []string{"A"}, gen)
	require.True(t, stored)

	keys, ok := c.Get(roleID)
	require.True(t, ok)
	assert.Contains(t, keys, "A")
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()
	ids := make([]uuid.UUID, 16)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				id := ids[n%len(ids)]
				switch n % 4 {
				case 0:
					c.Set(id, []string{"A", "B"})
				case 1:
					c.Get(id)
				case 2:
					c.Invalidate(id)
				default:
					c.SetIfCurrent(id, []string{"C"}, c.Generation(id))
				}
			}
		}()
	}
	wg.Wait()
}
