package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthportal/portal/internal/domain/profile"
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
	return db.Dialect.From(goqu.T("appointments").As("a")).
		Join(goqu.T("profiles").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("a.patient_id")))).
		Join(goqu.T("profiles").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("a.doctor_id")))).
		Select(
			"a.id", "a.patient_id", "a.doctor_id", "a.appointment_date", "a.appointment_time",
			"a.type", "a.status", "a.notes", "a.created_at", "a.updated_at",
			"p.full_name", "p.email", "d.full_name", "d.email", "d.specialization",
		)
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	pat := &profile.Summary{}
	doc := &profile.Summary{}
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time,
		&a.Type, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&pat.FullName, &pat.Email, &doc.FullName, &doc.Email, &doc.Specialization)
	if err != nil {
		return nil, err
	}
	pat.ID = a.PatientID
	doc.ID = a.DoctorID
	a.Patient, a.Doctor = pat, doc
	return &a, nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "appointments.list")
	defer span.End()

	ds := selectJoined()
	if f.PatientID != nil {
		ds = ds.Where(goqu.I("a.patient_id").Eq(*f.PatientID))
	}
	if f.DoctorID != nil {
		ds = ds.Where(goqu.I("a.doctor_id").Eq(*f.DoctorID))
	}
	ds = ds.Order(goqu.I("a.appointment_date").Desc(), goqu.I("a.appointment_time").Desc())

	sql, args, err := db.Build("list appointments", ds.Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "appointments.get")
	defer span.End()

	sql, args, err := db.Build("get appointment", selectJoined().Where(goqu.I("a.id").Eq(id)).Prepared(true))
	if err != nil {
		return nil, err
	}
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	ctx, span := telemetry.StartSpan(ctx, "appointments.create")
	defer span.End()

	a.ID = uuid.New()
	sql, args, err := db.Build("create appointment", db.Dialect.Insert("appointments").Rows(goqu.Record{
		"id":               a.ID,
		"patient_id":       a.PatientID,
		"doctor_id":        a.DoctorID,
		"appointment_date": a.Date,
		"appointment_time": a.Time,
		"type":             a.Type,
		"status":           string(a.Status),
		"notes":            a.Notes,
	}).Returning("created_at", "updated_at").Prepared(true))
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) exec(ctx context.Context, op string, ds interface{ ToSQL() (string, []interface{}, error) }) (int64, error) {
	sql, args, err := db.Build(op, ds)
	if err != nil {
		return 0, err
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) (*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "appointments.update")
	defer span.End()

	n, err := r.exec(ctx, "update appointment", db.Dialect.Update("appointments").Set(goqu.Record{
		"doctor_id":        a.DoctorID,
		"appointment_date": a.Date,
		"appointment_time": a.Time,
		"type":             a.Type,
		"status":           string(a.Status),
		"notes":            a.Notes,
		"updated_at":       time.Now(),
	}).Where(goqu.Ex{"id": a.ID}).Prepared(true))
	if err != nil || n == 0 {
		return nil, err
	}
	return r.GetByID(ctx, a.ID)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "appointments.update_status")
	defer span.End()

	n, err := r.exec(ctx, "update appointment status", db.Dialect.Update("appointments").Set(goqu.Record{
		"status":     string(status),
		"updated_at": time.Now(),
	}).Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil || n == 0 {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "appointments.delete")
	defer span.End()

	_, err := r.exec(ctx, "delete appointment", db.Dialect.Delete("appointments").Where(goqu.Ex{"id": id}).Prepared(true))
	return err
}
