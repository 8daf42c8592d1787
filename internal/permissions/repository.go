package permissions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the permission
// catalog and role grants. It is the PermissionStore the authorization
// engine resolves against.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func catalogTable(scope authz.Scope) string {
	if scope == authz.ScopePlatform {
		return "platform_permissions"
	}
	return "tenant_permissions"
}

func grantTable(scope authz.Scope) string {
	if scope == authz.ScopePlatform {
		return "platform_role_permissions"
	}
	return "tenant_role_permissions"
}

func roleTable(scope authz.Scope) string {
	if scope == authz.ScopePlatform {
		return "platform_roles"
	}
	return "tenant_roles"
}

// FetchGrants implements authz.PermissionStore. A role with zero grants
// yields an empty slice; a missing role yields authz.ErrRoleNotFound so the
// engine can distinguish it from a store outage.
func (r *Repository) FetchGrants(ctx context.Context, roleID uuid.UUID, scope authz.Scope) ([]string, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+roleTable(scope)+` WHERE id = $1)`, roleID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, authz.ErrRoleNotFound
	}

	rows, err := r.pool.Query(ctx, `
		SELECT p.key
		FROM `+grantTable(scope)+` rp
		JOIN `+catalogTable(scope)+` p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.key`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Describe implements authz.PermissionStore.
func (r *Repository) Describe(ctx context.Context, key string, scope authz.Scope) (string, error) {
	var description string
	err := r.pool.QueryRow(ctx,
		`SELECT description FROM `+catalogTable(scope)+` WHERE key = $1`, key).Scan(&description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", authz.ErrKeyNotFound
		}
		return "", err
	}
	return description, nil
}

const permissionColumns = `id, key, description, domain, created_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Key, &p.Description, &p.Domain, &p.CreatedAt)
	return p, err
}

// List returns the catalog for a scope ordered by key.
func (r *Repository) List(ctx context.Context, scope authz.Scope) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+permissionColumns+` FROM `+catalogTable(scope)+` ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Create inserts a catalog entry. The key is unique per scope.
func (r *Repository) Create(ctx context.Context, scope authz.Scope, p Permission) (Permission, error) {
	created, err := scanPermission(r.pool.QueryRow(ctx, `
		INSERT INTO `+catalogTable(scope)+` (id, key, description, domain)
		VALUES ($1, $2, $3, $4)
		RETURNING `+permissionColumns,
		uuid.New(), p.Key, p.Description, p.Domain))
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return Permission{}, ErrDuplicateKey
		}
		return Permission{}, err
	}
	return created, nil
}

// UpdateMeta changes description and domain grouping. The key itself is
// immutable once granted, so it is not updatable here.
func (r *Repository) UpdateMeta(ctx context.Context, scope authz.Scope, id uuid.UUID, description, domain string) (Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, `
		UPDATE `+catalogTable(scope)+`
		SET description = $2, domain = $3
		WHERE id = $1
		RETURNING `+permissionColumns,
		id, description, domain))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// ReplaceGrants swaps the role's grant set for the given permission ids and
// returns the resulting permission keys. The whole swap is one transaction.
func (r *Repository) ReplaceGrants(ctx context.Context, scope authz.Scope, roleID uuid.UUID, permissionIDs []uuid.UUID) ([]string, error) {
	var keys []string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+roleTable(scope)+` WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return authz.ErrRoleNotFound
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM `+grantTable(scope)+` WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, permID := range permissionIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO `+grantTable(scope)+` (role_id, permission_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, roleID, permID); err != nil {
				return err
			}
		}

		rows, err := tx.Query(ctx, `
			SELECT p.key
			FROM `+grantTable(scope)+` rp
			JOIN `+catalogTable(scope)+` p ON p.id = rp.permission_id
			WHERE rp.role_id = $1
			ORDER BY p.key`, roleID)
		if err != nil {
			return err
		}
		defer rows.Close()
		keys = keys[:0]
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
