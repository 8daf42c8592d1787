package roles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/levelpower"
	"github.com/atlas-saas/atlas/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for both role flavors.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func table(scope authz.Scope) string {
	if scope == authz.ScopePlatform {
		return "platform_roles"
	}
	return "tenant_roles"
}

// whereScoped builds the scope filter with $1.. placeholders, returning the
// clause and leading args. Additional placeholders continue after the
// returned args.
func whereScoped(scope authz.Scope, tenantID uuid.UUID, extra string) (string, []any) {
	if scope == authz.ScopePlatform {
		return "tenant_id IS NULL AND " + extra + " = $1", nil
	}
	return "tenant_id = $1 AND " + extra + " = $2", []any{tenantID}
}

const roleColumns = `id, tenant_id, name, description, power, created_at, updated_at`

func scanRole(row pgx.Row, scope authz.Scope) (Role, error) {
	var r Role
	var tenantID *uuid.UUID
	err := row.Scan(&r.ID, &tenantID, &r.Name, &r.Description, &r.Power, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Role{}, err
	}
	if tenantID != nil {
		r.TenantID = *tenantID
	}
	r.Scope = scope
	return r, nil
}

// FindRole implements authz.RoleStore.
func (r *Repository) FindRole(ctx context.Context, scope authz.Scope, tenantID, roleID uuid.UUID) (authz.Role, error) {
	role, err := r.Get(ctx, scope, tenantID, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return authz.Role{}, authz.ErrRoleNotFound
		}
		return authz.Role{}, err
	}
	return role.Core(), nil
}

// RoleNameExists implements authz.RoleStore. The comparison runs against the
// stored normalized name key, making it case- and whitespace-insensitive.
func (r *Repository) RoleNameExists(ctx context.Context, scope authz.Scope, tenantID uuid.UUID, normalizedName string) (bool, error) {
	filter, args := whereScoped(scope, tenantID, "name_key")
	args = append(args, normalizedName)
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM ` + table(scope) + ` WHERE ` + filter + `)`
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Get fetches a role by id within its scope.
func (r *Repository) Get(ctx context.Context, scope authz.Scope, tenantID, roleID uuid.UUID) (Role, error) {
	return r.get(ctx, r.pool, scope, tenantID, roleID, "")
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) get(ctx context.Context, q queryRower, scope authz.Scope, tenantID, roleID uuid.UUID, suffix string) (Role, error) {
	filter, args := whereScoped(scope, tenantID, "id")
	args = append(args, roleID)
	query := `SELECT ` + roleColumns + ` FROM ` + table(scope) + ` WHERE ` + filter + suffix
	role, err := scanRole(q.QueryRow(ctx, query, args...), scope)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// List returns roles in the scope ordered by power, highest first.
func (r *Repository) List(ctx context.Context, scope authz.Scope, tenantID uuid.UUID) ([]Role, error) {
	var (
		query string
		args  []any
	)
	if scope == authz.ScopePlatform {
		query = `SELECT ` + roleColumns + ` FROM platform_roles WHERE tenant_id IS NULL ORDER BY power DESC, name`
	} else {
		query = `SELECT ` + roleColumns + ` FROM tenant_roles WHERE tenant_id = $1 ORDER BY power DESC, name`
		args = append(args, tenantID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows, scope)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Create inserts a role. For tenant roles the matching level power entry is
// created in the same transaction when absent; a conflicting entry aborts
// with *levelpower.PowerMismatchError.
func (r *Repository) Create(ctx context.Context, role Role, tenantName string) (Role, error) {
	nameKey := authz.NormalizeRoleName(role.Name)
	var created Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if role.Scope == authz.ScopeTenant {
			if err := ensureLevelTx(ctx, tx, role.TenantID, tenantName, role.Name, nameKey, role.Power); err != nil {
				return err
			}
		}
		var tenantID any
		if role.Scope == authz.ScopeTenant {
			tenantID = role.TenantID
		}
		var err error
		created, err = scanRole(tx.QueryRow(ctx, `
			INSERT INTO `+table(role.Scope)+` (id, tenant_id, name, name_key, description, power)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+roleColumns,
			uuid.New(), tenantID, role.Name, nameKey, role.Description, role.Power), role.Scope)
		return err
	})
	if err != nil {
		return Role{}, err
	}
	return created, nil
}

// ensureLevelTx is the transactional variant of the level power
// append-or-match rule, run alongside tenant role creation.
func ensureLevelTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, tenantName, roleName, nameKey string, power int) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO level_powers (id, tenant_id, tenant_name, role_name, name_key, power)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, name_key) DO NOTHING`,
		uuid.New(), tenantID, tenantName, roleName, nameKey, power)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var existing int
	err = tx.QueryRow(ctx,
		`SELECT power FROM level_powers WHERE tenant_id = $1 AND name_key = $2`,
		tenantID, nameKey).Scan(&existing)
	if err != nil {
		return err
	}
	if existing != power {
		return &levelpower.PowerMismatchError{RoleName: roleName, Existing: existing}
	}
	return nil
}

// Update changes a role's name and/or power.
func (r *Repository) Update(ctx context.Context, scope authz.Scope, tenantID, roleID uuid.UUID, name *string, power *int) (Role, error) {
	var updated Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := r.get(ctx, tx, scope, tenantID, roleID, " FOR UPDATE")
		if err != nil {
			return err
		}
		newName, newPower := current.Name, current.Power
		if name != nil {
			newName = *name
		}
		if power != nil {
			newPower = *power
		}
		updated, err = scanRole(tx.QueryRow(ctx, `
			UPDATE `+table(scope)+`
			SET name = $2, name_key = $3, power = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING `+roleColumns,
			roleID, newName, authz.NormalizeRoleName(newName), newPower), scope)
		return err
	})
	if err != nil {
		return Role{}, err
	}
	return updated, nil
}

// Delete removes a role. Grant rows cascade at the store level.
func (r *Repository) Delete(ctx context.Context, scope authz.Scope, tenantID, roleID uuid.UUID) error {
	filter, args := whereScoped(scope, tenantID, "id")
	args = append(args, roleID)
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM `+table(scope)+` WHERE `+filter, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
