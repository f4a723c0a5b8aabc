package medicalrecord

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
	return db.Dialect.From(goqu.T("medical_records").As("m")).
		Join(goqu.T("profiles").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("m.patient_id")))).
		Join(goqu.T("profiles").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("m.doctor_id")))).
		Select(
			"m.id", "m.patient_id", "m.doctor_id", "m.record_type", "m.record_date", "m.title",
			"m.description", "m.is_critical", "m.created_at", "m.updated_at",
			"p.full_name", "d.full_name",
		)
}

func scanRecord(row pgx.Row) (*Record, error) {
	var m Record
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.RecordType, &m.RecordDate, &m.Title,
		&m.Description, &m.IsCritical, &m.CreatedAt, &m.UpdatedAt,
		&m.PatientName, &m.DoctorName)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Record, error) {
	ctx, span := telemetry.StartSpan(ctx, "medical_records.list")
	defer span.End()

	ds := selectJoined()
	if f.PatientID != nil {
		ds = ds.Where(goqu.I("m.patient_id").Eq(*f.PatientID))
	}
	if f.DoctorID != nil {
		ds = ds.Where(goqu.I("m.doctor_id").Eq(*f.DoctorID))
	}
	sql, args, err := db.Build("list medical records", ds.Order(goqu.I("m.record_date").Desc()).Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	ctx, span := telemetry.StartSpan(ctx, "medical_records.get")
	defer span.End()

	sql, args, err := db.Build("get medical record", selectJoined().Where(goqu.I("m.id").Eq(id)).Prepared(true))
	if err != nil {
		return nil, err
	}
	m, err := scanRecord(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *repoPG) Create(ctx context.Context, m *Record) error {
	ctx, span := telemetry.StartSpan(ctx, "medical_records.create")
	defer span.End()

	m.ID = uuid.New()
	sql, args, err := db.Build("create medical record", db.Dialect.Insert("medical_records").Rows(goqu.Record{
		"id":          m.ID,
		"patient_id":  m.PatientID,
		"doctor_id":   m.DoctorID,
		"record_type": m.RecordType,
		"record_date": m.RecordDate,
		"title":       m.Title,
		"description": m.Description,
		"is_critical": m.IsCritical,
	}).Returning("created_at", "updated_at").Prepared(true))
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) Update(ctx context.Context, m *Record) (*Record, error) {
	ctx, span := telemetry.StartSpan(ctx, "medical_records.update")
	defer span.End()

	sql, args, err := db.Build("update medical record", db.Dialect.Update("medical_records").Set(goqu.Record{
		"record_type": m.RecordType,
		"record_date": m.RecordDate,
		"title":       m.Title,
		"description": m.Description,
		"is_critical": m.IsCritical,
		"updated_at":  time.Now(),
	}).Where(goqu.Ex{"id": m.ID}).Prepared(true))
	if err != nil {
		return nil, err
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil || tag.RowsAffected() == 0 {
		return nil, err
	}
	return r.GetByID(ctx, m.ID)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "medical_records.delete")
	defer span.End()

	sql, args, err := db.Build("delete medical record", db.Dialect.Delete("medical_records").
		Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, sql, args...)
	return err
}
