package payment

import (
	"context"
	"errors"
	"time"

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
	return db.Dialect.From(goqu.T("payments").As("y")).
		Join(goqu.T("profiles").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("y.patient_id")))).
		Select(
			"y.id", "y.patient_id", "y.amount", "y.description", "y.payment_method",
			"y.status", "y.due_date", "y.paid_at", "y.created_at", "y.updated_at",
			"p.full_name",
		)
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.PatientID, &p.Amount, &p.Description, &p.Method,
		&p.Status, &p.DueDate, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt, &p.PatientName)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "payments.list")
	defer span.End()

	ds := selectJoined()
	if f.PatientID != nil {
		ds = ds.Where(goqu.I("y.patient_id").Eq(*f.PatientID))
	}
	sql, args, err := db.Build("list payments", ds.Order(goqu.I("y.created_at").Desc()).Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "payments.get")
	defer span.End()

	sql, args, err := db.Build("get payment", selectJoined().Where(goqu.I("y.id").Eq(id)).Prepared(true))
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) Create(ctx context.Context, p *Payment) error {
	ctx, span := telemetry.StartSpan(ctx, "payments.create")
	defer span.End()

	p.ID = uuid.New()
	sql, args, err := db.Build("create payment", db.Dialect.Insert("payments").Rows(goqu.Record{
		"id":             p.ID,
		"patient_id":     p.PatientID,
		"amount":         p.Amount,
		"description":    p.Description,
		"payment_method": p.Method,
		"status":         string(p.Status),
		"due_date":       p.DueDate,
		"paid_at":        p.PaidAt,
	}).Returning("created_at", "updated_at").Prepared(true))
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, method *string, paidAt *time.Time) (*Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "payments.update_status")
	defer span.End()

	rec := goqu.Record{"status": string(status), "updated_at": time.Now()}
	if method != nil {
		rec["payment_method"] = *method
	}
	if paidAt != nil {
		rec["paid_at"] = *paidAt
	}
	sql, args, err := db.Build("update payment status", db.Dialect.Update("payments").Set(rec).
		Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return nil, err
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil || tag.RowsAffected() == 0 {
		return nil, err
	}
	return r.GetByID(ctx, id)
}
