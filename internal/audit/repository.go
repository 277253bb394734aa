package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository stores audit entries in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, e Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (user_id, action, entity, entity_id, details)
		VALUES (NULLIF($1, 0), $2, $3, $4, NULLIF($5, ''))`,
		e.UserID, e.Action, e.Entity, e.EntityID, e.Details)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Window lists entries newest first. limit 0 means no limit; the export
// path uses that.
func (r *PgRepository) Window(ctx context.Context, filter Filter, offset, limit int) ([]Entry, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID > 0 {
		where = append(where, "a.user_id = "+arg(filter.UserID))
	}
	if filter.Entity != "" {
		where = append(where, "a.entity = "+arg(filter.Entity))
	}
	if filter.Action != "" {
		where = append(where, "a.action = "+arg(filter.Action))
	}
	if !filter.From.IsZero() {
		where = append(where, "a.created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "a.created_at < "+arg(filter.To))
	}

	query := `
		SELECT a.id, COALESCE(a.user_id, 0), COALESCE(u.username, ''), a.action, a.entity, a.entity_id, COALESCE(a.details, ''), a.created_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY a.id DESC`
	if limit > 0 {
		query += " OFFSET " + arg(offset) + " LIMIT " + arg(limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.Action, &e.Entity, &e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
