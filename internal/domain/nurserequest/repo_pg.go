package nurserequest

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
	return db.Dialect.From(goqu.T("nurse_requests").As("n")).
		Join(goqu.T("profiles").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("n.patient_id")))).
		LeftJoin(goqu.T("profiles").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("n.nurse_id")))).
		Select(
			"n.id", "n.patient_id", "n.nurse_id", "n.request_type", "n.address",
			"n.requested_date", "n.requested_time", "n.duration_hours", "n.priority",
			"n.services", "n.status", "n.notes", "n.created_at", "n.updated_at",
			"p.full_name", "u.full_name",
		)
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.PatientID, &r.NurseID, &r.RequestType, &r.Address,
		&r.RequestedDate, &r.RequestedTime, &r.DurationHours, &r.Priority,
		&r.Services, &r.Status, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
		&r.PatientName, &r.NurseName)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Request, error) {
	ctx, span := telemetry.StartSpan(ctx, "nurse_requests.list")
	defer span.End()

	ds := selectJoined()
	if f.PatientID != nil {
		ds = ds.Where(goqu.I("n.patient_id").Eq(*f.PatientID))
	}
	if f.NurseID != nil {
		ds = ds.Where(goqu.I("n.nurse_id").Eq(*f.NurseID))
	}
	if f.Open {
		ds = ds.Where(goqu.I("n.status").Eq(string(StatusPending)), goqu.I("n.nurse_id").IsNull())
	}
	ds = ds.Order(goqu.I("n.requested_date").Asc(), goqu.I("n.requested_time").Asc())

	sql, args, err := db.Build("list nurse requests", ds.Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	ctx, span := telemetry.StartSpan(ctx, "nurse_requests.get")
	defer span.End()

	sql, args, err := db.Build("get nurse request", selectJoined().Where(goqu.I("n.id").Eq(id)).Prepared(true))
	if err != nil {
		return nil, err
	}
	req, err := scanRequest(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

func (r *repoPG) Create(ctx context.Context, req *Request) error {
	ctx, span := telemetry.StartSpan(ctx, "nurse_requests.create")
	defer span.End()

	req.ID = uuid.New()
	sql, args, err := db.Build("create nurse request", db.Dialect.Insert("nurse_requests").Rows(goqu.Record{
		"id":             req.ID,
		"patient_id":     req.PatientID,
		"nurse_id":       req.NurseID,
		"request_type":   req.RequestType,
		"address":        req.Address,
		"requested_date": req.RequestedDate,
		"requested_time": req.RequestedTime,
		"duration_hours": req.DurationHours,
		"priority":       req.Priority,
		"services":       db.JSON(req.Services),
		"status":         string(req.Status),
		"notes":          req.Notes,
	}).Returning("created_at", "updated_at").Prepared(true))
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&req.CreatedAt, &req.UpdatedAt)
}

func (r *repoPG) update(ctx context.Context, op string, id uuid.UUID, rec goqu.Record, where ...goqu.Expression) (*Request, error) {
	rec["updated_at"] = time.Now()
	ds := db.Dialect.Update("nurse_requests").Set(rec).Where(goqu.Ex{"id": id})
	if len(where) > 0 {
		ds = ds.Where(where...)
	}
	sql, args, err := db.Build(op, ds.Prepared(true))
	if err != nil {
		return nil, err
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil || tag.RowsAffected() == 0 {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repoPG) Accept(ctx context.Context, id, nurseID uuid.UUID) (*Request, error) {
	ctx, span := telemetry.StartSpan(ctx, "nurse_requests.accept")
	defer span.End()

	return r.update(ctx, "accept nurse request", id,
		goqu.Record{"nurse_id": nurseID, "status": string(StatusAccepted)},
		goqu.C("status").Eq(string(StatusPending)), goqu.C("nurse_id").IsNull())
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Request, error) {
	ctx, span := telemetry.StartSpan(ctx, "nurse_requests.update_status")
	defer span.End()

	return r.update(ctx, "update nurse request status", id, goqu.Record{"status": string(status)})
}
