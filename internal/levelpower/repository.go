package levelpower

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for level powers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const levelColumns = `id, tenant_id, tenant_name, role_name, power, created_at, updated_at`

func scanLevel(row pgx.Row) (Level, error) {
	var l Level
	err := row.Scan(&l.ID, &l.TenantID, &l.TenantName, &l.RoleName, &l.Power, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// FindLevelByName implements authz.NamedPowerStore. Lookup is by the
// normalized name key, so spelling variants of the same role name resolve
// to one entry.
func (r *Repository) FindLevelByName(ctx context.Context, tenantID uuid.UUID, roleName string) (authz.NamedPowerLevel, error) {
	nameKey := authz.NormalizeRoleName(roleName)
	row := r.pool.QueryRow(ctx,
		`SELECT tenant_id, role_name, power FROM level_powers WHERE tenant_id = $1 AND name_key = $2`,
		tenantID, nameKey)
	var l authz.NamedPowerLevel
	if err := row.Scan(&l.TenantID, &l.RoleName, &l.Power); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.NamedPowerLevel{}, authz.ErrLevelNotFound
		}
		return authz.NamedPowerLevel{}, err
	}
	return l, nil
}

// Ensure records the (tenant, role name) power pair if absent and verifies
// it matches when present. The unique constraint on (tenant_id, name_key)
// closes the check-then-insert race.
func (r *Repository) Ensure(ctx context.Context, tenantID uuid.UUID, tenantName, roleName string, power int) (Level, error) {
	nameKey := authz.NormalizeRoleName(roleName)

	row := r.pool.QueryRow(ctx, `
		INSERT INTO level_powers (id, tenant_id, tenant_name, role_name, name_key, power)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, name_key) DO NOTHING
		RETURNING `+levelColumns,
		uuid.New(), tenantID, tenantName, roleName, nameKey, power)
	level, err := scanLevel(row)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Level{}, err
	}

	// Insert lost to an existing row; match or refuse.
	row = r.pool.QueryRow(ctx,
		`SELECT `+levelColumns+` FROM level_powers WHERE tenant_id = $1 AND name_key = $2`,
		tenantID, nameKey)
	existing, err := scanLevel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, ErrNotFound
		}
		return Level{}, err
	}
	if existing.Power != power {
		return Level{}, &PowerMismatchError{RoleName: existing.RoleName, Existing: existing.Power}
	}
	return existing, nil
}

// List returns level powers, optionally filtered by tenant, newest first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]Level, error) {
	query := `SELECT ` + levelColumns + ` FROM level_powers ORDER BY created_at DESC`
	args := []any{}
	if tenantID != uuid.Nil {
		query = `SELECT ` + levelColumns + ` FROM level_powers WHERE tenant_id = $1 ORDER BY created_at DESC`
		args = append(args, tenantID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var levels []Level
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

// Update changes the power or role name of an entry.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, roleName *string, power *int) (Level, error) {
	var level Level
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanLevel(tx.QueryRow(ctx,
			`SELECT `+levelColumns+` FROM level_powers WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		name, pw := current.RoleName, current.Power
		if roleName != nil {
			name = *roleName
		}
		if power != nil {
			pw = *power
		}
		level, err = scanLevel(tx.QueryRow(ctx, `
			UPDATE level_powers
			SET role_name = $2, name_key = $3, power = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING `+levelColumns,
			id, name, authz.NormalizeRoleName(name), pw))
		return err
	})
	return level, err
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM level_powers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
