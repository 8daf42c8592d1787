package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Engine answers "is principal P allowed to perform the action requiring
// permission key K". It consults the cache first and falls back to the
// permission store on a miss, collapsing concurrent fetches for the same
// role into a single store round-trip.
type Engine struct {
	cache   *Cache
	store   PermissionStore
	metrics *Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewEngine constructs an Engine.
func NewEngine(cache *Cache, store PermissionStore, metrics *Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cache: cache, store: store, metrics: metrics, logger: logger}
}

// Authorize decides whether the principal holds the required permission.
// A store failure during grant resolution is returned as an error, never
// converted into a deny: an unreachable store must not masquerade as "no
// permission".
func (e *Engine) Authorize(ctx context.Context, p Principal, requiredKey string) (Decision, error) {
	if p.Authority() == AuthorityUnconditional {
		e.metrics.decision("bypass")
		return Allow(), nil
	}

	if p.RoleID == uuid.Nil {
		e.metrics.decision("deny")
		return Deny("role not found"), nil
	}

	keys, err := e.resolveGrants(ctx, p.RoleID, p.Scope())
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			e.metrics.decision("deny")
			return Deny("role not found"), nil
		}
		return Decision{}, fmt.Errorf("authz: resolve grants for role %s: %w", p.RoleID, err)
	}

	if _, ok := keys[requiredKey]; ok {
		e.metrics.decision("allow")
		return Allow(), nil
	}

	e.metrics.decision("deny")
	return Deny(fmt.Sprintf("your role does not have permission %q", e.describeKey(ctx, requiredKey, p.Scope()))), nil
}

// resolveGrants returns the current key set for a role, populating the cache
// on a miss. The singleflight group keys on role id plus the slot generation
// observed before the fetch: concurrent misses against the same generation
// share one store round-trip, while a caller arriving after an invalidation
// (which bumps the generation) starts a fresh fetch instead of joining a
// flight whose store read predates the mutation.
func (e *Engine) resolveGrants(ctx context.Context, roleID uuid.UUID, scope Scope) (map[string]struct{}, error) {
	if keys, ok := e.cache.Get(roleID); ok {
		e.metrics.cacheLookup("hit")
		return keys, nil
	}
	e.metrics.cacheLookup("miss")

	gen := e.cache.Generation(roleID)
	flightKey := roleID.String() + ":" + strconv.FormatUint(gen, 10)
	resultChan := e.group.DoChan(flightKey, func() (interface{}, error) {
		granted, err := e.store.FetchGrants(ctx, roleID, scope)
		if err != nil {
			return nil, err
		}
		if !e.cache.SetIfCurrent(roleID, granted, gen) {
			e.logger.Debug("cache population lost to invalidation", slog.String("role_id", roleID.String()))
		}
		set := make(map[string]struct{}, len(granted))
		for _, k := range granted {
			set[k] = struct{}{}
		}
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]struct{}), nil
	}
}

// describeKey resolves a permission key to its stored description for deny
// messages, falling back to the raw key. Lookup failures are non-fatal; the
// deny proceeds with whatever label is available.
func (e *Engine) describeKey(ctx context.Context, key string, scope Scope) string {
	desc, err := e.store.Describe(ctx, key, scope)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			e.logger.Warn("describe permission key", slog.String("key", key), slog.Any("error", err))
		}
		return key
	}
	if desc == "" {
		return key
	}
	return desc
}
