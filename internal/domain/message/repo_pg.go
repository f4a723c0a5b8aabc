package message

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

func selectJoined() *goqu.SelectDataset {
	return db.Dialect.From(goqu.T("messages").As("m")).
		Join(goqu.T("profiles").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("m.sender_id")))).
		Join(goqu.T("profiles").As("r"), goqu.On(goqu.I("r.id").Eq(goqu.I("m.recipient_id")))).
		Select(
			"m.id", "m.sender_id", "m.recipient_id", "m.subject", "m.content",
			"m.priority", "m.is_read", "m.created_at",
			"s.full_name", "r.full_name",
		)
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Subject, &m.Content,
		&m.Priority, &m.IsRead, &m.CreatedAt, &m.SenderName, &m.RecipientName)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "messages.list_for_user")
	defer span.End()

	ds := selectJoined().Where(goqu.Or(
		goqu.I("m.sender_id").Eq(userID),
		goqu.I("m.recipient_id").Eq(userID),
	)).Order(goqu.I("m.created_at").Desc())
	sql, args, err := db.Build("list messages", ds.Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "messages.get")
	defer span.End()

	sql, args, err := db.Build("get message", selectJoined().Where(goqu.I("m.id").Eq(id)).Prepared(true))
	if err != nil {
		return nil, err
	}
	m, err := scanMessage(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	ctx, span := telemetry.StartSpan(ctx, "messages.create")
	defer span.End()

	m.ID = uuid.New()
	sql, args, err := db.Build("create message", db.Dialect.Insert("messages").Rows(goqu.Record{
		"id":           m.ID,
		"sender_id":    m.SenderID,
		"recipient_id": m.RecipientID,
		"subject":      m.Subject,
		"content":      m.Content,
		"priority":     string(m.Priority),
		"is_read":      m.IsRead,
	}).Returning("created_at").Prepared(true))
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&m.CreatedAt)
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) (*Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "messages.mark_read")
	defer span.End()

	sql, args, err := db.Build("mark message read", db.Dialect.Update("messages").
		Set(goqu.Record{"is_read": true}).Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return nil, err
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil || tag.RowsAffected() == 0 {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "messages.delete")
	defer span.End()

	sql, args, err := db.Build("delete message", db.Dialect.Delete("messages").Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, sql, args...)
	return err
}
