package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository queries audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Timeline returns entries matching the filters, newest first, plus the
// total match count for paging.
func (r *PGRepository) Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineEntry, int, error) {
	where := " WHERE TRUE"
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}
	if filters.ActorID != "" {
		add(" AND actor_id = $%d", filters.ActorID)
	}
	if filters.Entity != "" {
		add(" AND entity = $%d", filters.Entity)
	}
	if filters.EntityID != "" {
		add(" AND entity_id = $%d", filters.EntityID)
	}
	if filters.Action != "" {
		add(" AND action = $%d", filters.Action)
	}
	if filters.Since != nil {
		add(" AND occurred_at >= $%d", *filters.Since)
	}
	if filters.Until != nil {
		add(" AND occurred_at < $%d", *filters.Until)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count timeline: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT id, actor_id, action, entity, entity_id, before_state, after_state, reason, occurred_at
		 FROM audit_logs%s ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: query timeline: %w", err)
	}
	defer rows.Close()

	var entries []TimelineEntry
	for rows.Next() {
		var entry TimelineEntry
		var before, after []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Entity, &entry.EntityID,
			&before, &after, &entry.Reason, &entry.OccurredAt); err != nil {
			return nil, 0, err
		}
		if len(before) > 0 {
			_ = json.Unmarshal(before, &entry.Before)
		}
		if len(after) > 0 {
			_ = json.Unmarshal(after, &entry.After)
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}
