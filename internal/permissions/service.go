package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/atlas-saas/atlas/internal/audit"
	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/httpx"
	"github.com/atlas-saas/atlas/internal/shared"
)

// RepositoryPort defines data access methods for the catalog and grants.
type RepositoryPort interface {
	List(ctx context.Context, scope authz.Scope) ([]Permission, error)
	Create(ctx context.Context, scope authz.Scope, p Permission) (Permission, error)
	UpdateMeta(ctx context.Context, scope authz.Scope, id uuid.UUID, description, domain string) (Permission, error)
	ReplaceGrants(ctx context.Context, scope authz.Scope, roleID uuid.UUID, permissionIDs []uuid.UUID) ([]string, error)
}

// Service handles catalog and grant business logic.
type Service struct {
	repo   RepositoryPort
	cache  *authz.Cache
	sink   audit.Recorder
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, cache *authz.Cache, sink audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, sink: sink, logger: logger}
}

// EnsureCore registers the built-in permission keys for the scope. Keys that
// already exist are left untouched, so the call is safe on every startup.
func (s *Service) EnsureCore(ctx context.Context, scope authz.Scope) error {
	for _, key := range shared.CoreScopes() {
		_, err := s.repo.Create(ctx, scope, Permission{
			Key:         key,
			Description: strings.ReplaceAll(strings.ToLower(key), "_", " "),
		})
		if err != nil && !errors.Is(err, ErrDuplicateKey) {
			return fmt.Errorf("ensure permission %s: %w", key, err)
		}
	}
	return nil
}

// List returns the scope's catalog.
func (s *Service) List(ctx context.Context, scope authz.Scope) ([]Permission, error) {
	return s.repo.List(ctx, scope)
}

// ListGrouped returns the catalog grouped by domain tag for display.
// Ungrouped permissions fall into "Uncategorized".
func (s *Service) ListGrouped(ctx context.Context, scope authz.Scope) ([]Group, error) {
	perms, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	byDomain := make(map[string][]Permission)
	for _, p := range perms {
		label := p.Domain
		if label == "" {
			label = "Uncategorized"
		}
		byDomain[label] = append(byDomain[label], p)
	}
	groups := make([]Group, 0, len(byDomain))
	for label, members := range byDomain {
		groups = append(groups, Group{Label: label, Permissions: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Label < groups[j].Label })
	return groups, nil
}

// Create registers a new permission key. Keys are normalized to uppercase.
func (s *Service) Create(ctx context.Context, actor authz.Principal, scope authz.Scope, key, description, domain string) (Permission, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" || strings.TrimSpace(description) == "" {
		return Permission{}, fmt.Errorf("%w: key and description required", httpx.ErrValidation)
	}

	created, err := s.repo.Create(ctx, scope, Permission{
		Key:         key,
		Description: strings.TrimSpace(description),
		Domain:      strings.TrimSpace(domain),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return Permission{}, fmt.Errorf("%w: permission key %q", httpx.ErrDuplicate, key)
		}
		return Permission{}, err
	}

	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		Action:    "PERMISSION_CREATED",
		Entity:    "PERMISSION",
		EntityID:  created.ID.String(),
		Meta:      map[string]any{"key": created.Key, "scope": scope.String()},
	})
	return created, nil
}

// UpdateMeta changes a permission's description or grouping. The key stays
// immutable once referenced by grants.
func (s *Service) UpdateMeta(ctx context.Context, actor authz.Principal, scope authz.Scope, id uuid.UUID, description, domain string) (Permission, error) {
	updated, err := s.repo.UpdateMeta(ctx, scope, id, strings.TrimSpace(description), strings.TrimSpace(domain))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Permission{}, httpx.ErrNotFound
		}
		return Permission{}, err
	}
	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		Action:    "PERMISSION_UPDATED",
		Entity:    "PERMISSION",
		EntityID:  updated.ID.String(),
		Meta:      map[string]any{"key": updated.Key},
	})
	return updated, nil
}

// AssignToRole replaces the role's grant set and repopulates the permission
// cache with the committed keys, so the next authorize call hits without
// another store round-trip.
func (s *Service) AssignToRole(ctx context.Context, actor authz.Principal, scope authz.Scope, tenantID, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	keys, err := s.repo.ReplaceGrants(ctx, scope, roleID, permissionIDs)
	if err != nil {
		if errors.Is(err, authz.ErrRoleNotFound) {
			return httpx.ErrNotFound
		}
		return err
	}

	s.cache.Set(roleID, keys)
	s.logger.Info("permissions assigned",
		slog.String("role_id", roleID.String()),
		slog.Int("count", len(keys)))

	_ = s.sink.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorType: actor.Kind.String(),
		TenantID:  tenantID,
		Action:    "PERMISSIONS_ASSIGNED",
		Entity:    entityFor(scope),
		EntityID:  roleID.String(),
		Meta:      map[string]any{"keys": keys},
	})
	return nil
}

func entityFor(scope authz.Scope) string {
	if scope == authz.ScopePlatform {
		return "PLATFORM_ROLE"
	}
	return "TENANT_ROLE"
}
