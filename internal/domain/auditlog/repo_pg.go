package auditlog

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/telemetry"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) List(ctx context.Context, limit int) ([]*Entry, error) {
	ctx, span := telemetry.StartSpan(ctx, "audit_logs.list")
	defer span.End()

	ds := db.Dialect.From(goqu.T("audit_logs").As("l")).
		LeftJoin(goqu.T("profiles").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("l.user_id")))).
		Select("l.id", "l.user_id", "l.action", "l.entity_type", "l.entity_id",
			"l.details", "l.ip_address", "l.created_at", "p.full_name").
		Order(goqu.I("l.created_at").Desc()).
		Limit(uint(limit))

	sql, args, err := db.Build("list audit logs", ds.Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
			&e.Details, &e.IPAddress, &e.CreatedAt, &e.UserName); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	ctx, span := telemetry.StartSpan(ctx, "audit_logs.create")
	defer span.End()

	e.ID = uuid.New()
	sql, args, err := db.Build("create audit log", db.Dialect.Insert("audit_logs").Rows(goqu.Record{
		"id":          e.ID,
		"user_id":     e.UserID,
		"action":      e.Action,
		"entity_type": e.EntityType,
		"entity_id":   e.EntityID,
		"details":     db.JSON(e.Details),
		"ip_address":  e.IPAddress,
	}).Returning("created_at").Prepared(true))
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&e.CreatedAt)
}
