package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"accountd.io/internal/audit"
)

var _ audit.Store = (*AuditLog)(nil)

// AuditLog is the append-only audit_log table.
type AuditLog struct{ s *Store }

func (a *AuditLog) Append(ctx context.Context, e *audit.Entry) error {
	return a.s.db.QueryRowContext(ctx, `
		insert into audit_log(ts, actor_principal_id, entity_name, entity_id, field_name,
			old_value, new_value, action_type, log_level, ip_address, request_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		returning id
	`,
		e.Timestamp, nullInt64(e.ActorID), e.EntityName, nullInt64(e.EntityID), nullString(e.FieldName),
		nullString(e.OldValue), nullString(e.NewValue), string(e.Action), string(e.Level), e.IPAddress, e.RequestID,
	).Scan(&e.ID)
}

func (a *AuditLog) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	f = f.Normalize()
	var (
		where []string
		args  []any
	)
	if f.Action != "" {
		args = append(args, string(f.Action))
		where = append(where, fmt.Sprintf("action_type = $%d", len(args)))
	}
	if f.ActorID != nil {
		args = append(args, *f.ActorID)
		where = append(where, fmt.Sprintf("actor_principal_id = $%d", len(args)))
	}
	query := `select id, ts, actor_principal_id, entity_name, entity_id, field_name,
		old_value, new_value, action_type, log_level, ip_address, request_id
		from audit_log`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" order by id desc limit $%d", len(args))

	rows, err := a.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Entry, 0, f.Limit)
	for rows.Next() {
		var (
			e                 audit.Entry
			actor, entity     sql.NullInt64
			field, oldV, newV sql.NullString
			action, level     string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &actor, &e.EntityName, &entity, &field,
			&oldV, &newV, &action, &level, &e.IPAddress, &e.RequestID); err != nil {
			return nil, err
		}
		e.ActorID = int64Ptr(actor)
		e.EntityID = int64Ptr(entity)
		e.FieldName = stringPtr(field)
		e.OldValue = stringPtr(oldV)
		e.NewValue = stringPtr(newV)
		e.Action = audit.Action(action)
		e.Level = audit.Level(level)
		out = append(out, e)
	}
	return out, rows.Err()
}
