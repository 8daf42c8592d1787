package authz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(store *stubPermissionStore) (*Engine, *Cache) {
	cache := NewCache()
	return NewEngine(cache, store, nil, nil), cache
}

func tenantUser(roleID uuid.UUID) Principal {
	return Principal{ID: uuid.New(), Kind: KindTenantUser, TenantID: uuid.New(), RoleID: roleID}
}

func TestAuthorizeBypassesForSuperAdmin(t *testing.T) {
	store := newStubPermissionStore()
	engine, _ := newTestEngine(store)

	decision, err := engine.Authorize(context.Background(), Principal{ID: uuid.New(), Kind: KindPlatformSuperAdmin}, "ANYTHING")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Zero(t, store.fetchCalls.Load(), "bypass must not consult the store")
}

func TestAuthorizeBypassesForTenantOwner(t *testing.T) {
	store := newStubPermissionStore()
	engine, _ := newTestEngine(store)

	decision, err := engine.Authorize(context.Background(), Principal{ID: uuid.New(), Kind: KindTenantOwner, TenantID: uuid.New()}, "ANYTHING")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Zero(t, store.fetchCalls.Load())
}

func TestAuthorizeDeniesWithoutRole(t *testing.T) {
	engine, _ := newTestEngine(newStubPermissionStore())

	decision, err := engine.Authorize(context.Background(), tenantUser(uuid.Nil), "ROLE_VIEW")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "role not found", decision.Reason)
}

func TestAuthorizeAllowsGrantedKey(t *testing.T) {
	store := newStubPermissionStore()
	roleID := uuid.New()
	store.grants[roleID] = []string{"ROLE_VIEW", "STAFF_VIEW"}
	engine, _ := newTestEngine(store)

	decision, err := engine.Authorize(context.Background(), tenantUser(roleID), "ROLE_VIEW")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAuthorizeDenyCarriesDescription(t *testing.T) {
	store := newStubPermissionStore()
	roleID := uuid.New()
	store.grants[roleID] = []string{"ROLE_VIEW"}
	store.descriptions["ROLE_DELETE"] = "Delete roles"
	engine, _ := newTestEngine(store)

	decision, err := engine.Authorize(context.Background(), tenantUser(roleID), "ROLE_DELETE")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, `"Delete roles"`)
}

func TestAuthorizeDenyFallsBackToRawKey(t *testing.T) {
	store := newStubPermissionStore()
	roleID := uuid.New()
	store.grants[roleID] = []string{}
	engine, _ := newTestEngine(store)

	decision, err := engine.Authorize(context.Background(), tenantUser(roleID), "ROLE_DELETE")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, `"ROLE_DELETE"`)
}

func TestAuthorizeUnknownRoleDenies(t *testing.T) {
	engine, _ := newTestEngine(newStubPermissionStore())

	decision, err := engine.Authorize(context.Background(), tenantUser(uuid.New()), "ROLE_VIEW")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "role not found", decision.Reason)
}

func TestAuthorizeStoreFailureIsErrorNotDeny(t *testing.T) {
	store := newStubPermissionStore()
	store.fetchErr = errors.New("connection refused")
	engine, _ := newTestEngine(store)

	decision, err := engine.Authorize(context.Background(), tenantUser(uuid.New()), "ROLE_VIEW")
	require.Error(t, err)
	assert.False(t, decision.Allowed)
	assert.Empty(t, decision.Reason, "a store failure must not produce a deny decision")
}

func TestAuthorizePopulatesCacheOnce(t *testing.T) {
	store := newStubPermissionStore()
	roleID := uuid.New()
	store.grants[roleID] = []string{"ROLE_VIEW"}
	engine, cache := newTestEngine(store)
	p := tenantUser(roleID)

	for i := 0; i < 5; i++ {
		_, err := engine.Authorize(context.Background(), p, "ROLE_VIEW")
		require.NoError(t, err)
	}

	assert.EqualValues(t, 1, store.fetchCalls.Load(), "subsequent checks must hit the cache")
	_, ok := cache.Get(roleID)
	assert.True(t, ok)
}

func TestAuthorizeCollapsesConcurrentMisses(t *testing.T) {
	store := newStubPermissionStore()
	roleID := uuid.New()
	store.grants[roleID] = []string{"ROLE_VIEW"}
	store.fetchGate = make(chan struct{})
	engine, _ := newTestEngine(store)
	p := tenantUser(roleID)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]Decision, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Authorize(context.Background(), p, "ROLE_VIEW")
		}(i)
	}

	close(store.fetchGate)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Allowed)
	}
	assert.Less(t, store.fetchCalls.Load(), int64(workers),
		"concurrent misses for one role must share fetches")
}

func TestAuthorizeInvalidationWinsOverStaleFetch(t *testing.T) {
	store := newStubPermissionStore()
	roleID := uuid.New()
	store.grants[roleID] = []string{"OLD_KEY"}
	engine, cache := newTestEngine(store)
	p := tenantUser(roleID)

	// Prime, then invalidate and change the authoritative set.
	_, err := engine.Authorize(context.Background(), p, "OLD_KEY")
	require.NoError(t, err)
	store.grants[roleID] = []string{"NEW_KEY"}
	cache.Invalidate(roleID)

	decision, err := engine.Authorize(context.Background(), p, "NEW_KEY")
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "post-invalidation check must see the new grant set")
}

// blockingSnapshotStore reads the grant set, signals on entered, then blocks
// until release is closed. The read snapshot is taken before blocking, so a
// mutation committed while a fetch is in flight is invisible to that fetch.
type blockingSnapshotStore struct {
	mu         sync.Mutex
	grants     map[uuid.UUID][]string
	fetchCalls atomic.Int64
	entered    chan struct{}
	release    chan struct{}
}

func newBlockingSnapshotStore() *blockingSnapshotStore {
	return &blockingSnapshotStore{
		grants:  make(map[uuid.UUID][]string),
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (s *blockingSnapshotStore) setGrants(roleID uuid.UUID, keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[roleID] = keys
}

func (s *blockingSnapshotStore) FetchGrants(ctx context.Context, roleID uuid.UUID, _ Scope) ([]string, error) {
	s.fetchCalls.Add(1)
	s.mu.Lock()
	snapshot := append([]string(nil), s.grants[roleID]...)
	s.mu.Unlock()
	s.entered <- struct{}{}
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return snapshot, nil
}

func (s *blockingSnapshotStore) Describe(ctx context.Context, key string, _ Scope) (string, error) {
	return "", ErrKeyNotFound
}

func waitEntered(t *testing.T, s *blockingSnapshotStore) {
	t.Helper()
	select {
	case <-s.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not start; caller joined an existing flight")
	}
}

func TestAuthorizeAfterMutationStartsFreshFetch(t *testing.T) {
	store := newBlockingSnapshotStore()
	roleID := uuid.New()
	store.setGrants(roleID, "OLD_KEY")
	cache := NewCache()
	engine := NewEngine(cache, store, nil, nil)
	p := tenantUser(roleID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = engine.Authorize(context.Background(), p, "OLD_KEY")
	}()
	waitEntered(t, store)

	// The first fetch holds a pre-mutation snapshot. Commit the grant change
	// and invalidate while it is still in flight.
	store.setGrants(roleID, "NEW_KEY")
	cache.Invalidate(roleID)

	var decision Decision
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		decision, err = engine.Authorize(context.Background(), p, "NEW_KEY")
	}()
	waitEntered(t, store)

	close(store.release)
	wg.Wait()

	require.NoError(t, err)
	assert.True(t, decision.Allowed,
		"an authorize call starting after the completed mutation must see the new grant set")
	assert.Equal(t, int64(2), store.fetchCalls.Load())
}

func TestAuthorizeRespectsContextCancellation(t *testing.T) {
	store := newStubPermissionStore()
	roleID := uuid.New()
	store.grants[roleID] = []string{"ROLE_VIEW"}
	store.fetchGate = make(chan struct{})
	engine, _ := newTestEngine(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Authorize(ctx, tenantUser(roleID), "ROLE_VIEW")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	close(store.fetchGate)
}
