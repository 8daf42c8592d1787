package staff

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for staff records. It is
// also the StaffStore and SuperAdminStore the authority resolver reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func table(scope authz.Scope) string {
	if scope == authz.ScopePlatform {
		return "platform_staff"
	}
	return "tenant_staff"
}

const staffColumns = `id, tenant_id, name, email, password_hash, role_id, role_name, power, is_active, created_at, updated_at`

func scanStaff(row pgx.Row, scope authz.Scope) (Staff, error) {
	var s Staff
	var tenantID, roleID *uuid.UUID
	var roleName *string
	err := row.Scan(&s.ID, &tenantID, &s.Name, &s.Email, &s.PasswordHash, &roleID, &roleName, &s.Power, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Staff{}, err
	}
	if tenantID != nil {
		s.TenantID = *tenantID
	}
	if roleID != nil {
		s.RoleID = *roleID
	}
	if roleName != nil {
		s.RoleName = *roleName
	}
	s.Scope = scope
	return s, nil
}

// FindStaff implements authz.StaffStore.
func (r *Repository) FindStaff(ctx context.Context, scope authz.Scope, staffID uuid.UUID) (authz.StaffRecord, error) {
	var rec authz.StaffRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, power, is_active FROM `+table(scope)+` WHERE id = $1`, staffID).
		Scan(&rec.ID, &rec.Power, &rec.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.StaffRecord{}, authz.ErrStaffNotFound
		}
		return authz.StaffRecord{}, err
	}
	return rec, nil
}

// SuperAdminPower implements authz.SuperAdminStore.
func (r *Repository) SuperAdminPower(ctx context.Context, id uuid.UUID) (int, error) {
	var power int
	err := r.pool.QueryRow(ctx, `SELECT power FROM super_admins WHERE id = $1`, id).Scan(&power)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, authz.ErrStaffNotFound
		}
		return 0, err
	}
	return power, nil
}

// Get fetches a staff record within its scope.
func (r *Repository) Get(ctx context.Context, scope authz.Scope, tenantID, staffID uuid.UUID) (Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM ` + table(scope) + ` WHERE id = $1`
	args := []any{staffID}
	if scope == authz.ScopeTenant {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}
	s, err := scanStaff(r.pool.QueryRow(ctx, query, args...), scope)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Staff{}, ErrNotFound
		}
		return Staff{}, err
	}
	return s, nil
}

// FindByEmail fetches a staff record by email for authentication.
func (r *Repository) FindByEmail(ctx context.Context, scope authz.Scope, email string) (Staff, error) {
	s, err := scanStaff(r.pool.QueryRow(ctx,
		`SELECT `+staffColumns+` FROM `+table(scope)+` WHERE lower(email) = lower($1)`, email), scope)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Staff{}, ErrNotFound
		}
		return Staff{}, err
	}
	return s, nil
}

// List returns staff in scope ordered by power, highest first.
func (r *Repository) List(ctx context.Context, scope authz.Scope, tenantID uuid.UUID) ([]Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM ` + table(scope)
	var args []any
	if scope == authz.ScopeTenant {
		query += ` WHERE tenant_id = $1`
		args = append(args, tenantID)
	}
	query += ` ORDER BY power DESC, name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Staff
	for rows.Next() {
		s, err := scanStaff(rows, scope)
		if err != nil {
			return nil, err
		}
		members = append(members, s)
	}
	return members, rows.Err()
}

// Create inserts a staff record.
func (r *Repository) Create(ctx context.Context, s Staff) (Staff, error) {
	var tenantID, roleID any
	var roleName any
	if s.Scope == authz.ScopeTenant {
		tenantID = s.TenantID
		roleName = s.RoleName
	} else if s.RoleID != uuid.Nil {
		roleID = s.RoleID
	}
	created, err := scanStaff(r.pool.QueryRow(ctx, `
		INSERT INTO `+table(s.Scope)+` (id, tenant_id, name, email, password_hash, role_id, role_name, power, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+staffColumns,
		uuid.New(), tenantID, s.Name, s.Email, s.PasswordHash, roleID, roleName, s.Power, s.Active), s.Scope)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return Staff{}, ErrEmailTaken
		}
		return Staff{}, err
	}
	return created, nil
}

// UpdateParams carries the mutable staff fields; nil means unchanged.
type UpdateParams struct {
	Name         *string
	PasswordHash *string
	Active       *bool
	RoleID       *uuid.UUID
	RoleName     *string
	Power        *int
}

// Update applies the given changes.
func (r *Repository) Update(ctx context.Context, scope authz.Scope, tenantID, staffID uuid.UUID, params UpdateParams) (Staff, error) {
	var updated Staff
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + staffColumns + ` FROM ` + table(scope) + ` WHERE id = $1`
		args := []any{staffID}
		if scope == authz.ScopeTenant {
			query += ` AND tenant_id = $2`
			args = append(args, tenantID)
		}
		current, err := scanStaff(tx.QueryRow(ctx, query+` FOR UPDATE`, args...), scope)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if params.Name != nil {
			current.Name = *params.Name
		}
		if params.PasswordHash != nil {
			current.PasswordHash = *params.PasswordHash
		}
		if params.Active != nil {
			current.Active = *params.Active
		}
		if params.RoleID != nil {
			current.RoleID = *params.RoleID
		}
		if params.RoleName != nil {
			current.RoleName = *params.RoleName
		}
		if params.Power != nil {
			current.Power = *params.Power
		}

		var roleID, roleName any
		if current.RoleID != uuid.Nil {
			roleID = current.RoleID
		}
		if current.RoleName != "" {
			roleName = current.RoleName
		}
		updated, err = scanStaff(tx.QueryRow(ctx, `
			UPDATE `+table(scope)+`
			SET name = $2, password_hash = $3, role_id = $4, role_name = $5, power = $6, is_active = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING `+staffColumns,
			staffID, current.Name, current.PasswordHash, roleID, roleName, current.Power, current.Active), scope)
		return err
	})
	if err != nil {
		return Staff{}, err
	}
	return updated, nil
}
