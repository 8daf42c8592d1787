package audit

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit events back out of the audit_logs table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const timelineColumns = `occurred_at, actor_id, actor_type, tenant_id, action, entity, entity_id, meta`

// whereTimeline builds the filter clause with $1.. placeholders.
func whereTimeline(filters TimelineFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, clause+" $"+strconv.Itoa(len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >=", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <=", filters.To)
	}
	if v := strings.TrimSpace(filters.ActorType); v != "" {
		add("actor_type =", v)
	}
	if v := strings.TrimSpace(filters.Entity); v != "" {
		add("entity =", v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		add("action =", v)
	}
	if filters.TenantID != uuid.Nil {
		add("tenant_id =", filters.TenantID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *Repository) query(ctx context.Context, filters TimelineFilters, tail string, tailArgs []any) ([]TimelineRow, error) {
	where, args := whereTimeline(filters)
	query := `SELECT ` + timelineColumns + ` FROM audit_logs` + where + ` ORDER BY occurred_at DESC` + tail
	args = append(args, tailArgs...)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var tenantID *uuid.UUID
		if err := rows.Scan(&row.OccurredAt, &row.ActorID, &row.ActorType, &tenantID,
			&row.Action, &row.Entity, &row.EntityID, &row.Meta); err != nil {
			return nil, err
		}
		if tenantID != nil {
			row.TenantID = *tenantID
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Window implements TimelineRepository.
func (r *Repository) Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	_, args := whereTimeline(filters)
	n := len(args)
	tail := ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	return r.query(ctx, filters, tail, []any{limit, offset})
}

// All implements TimelineRepository.
func (r *Repository) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return r.query(ctx, filters, "", nil)
}
