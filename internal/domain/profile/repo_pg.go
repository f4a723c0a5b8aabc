package profile

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
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

var profileCols = []interface{}{
	"id", "email", "full_name", "role", "specialization", "license_number",
	"experience_years", "department", "phone", "address", "date_of_birth",
	"is_active", "created_at", "updated_at",
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.Specialization, &p.LicenseNumber,
		&p.ExperienceYears, &p.Department, &p.Phone, &p.Address, &p.DateOfBirth,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, "profiles.get")
	defer span.End()

	sql, args, err := db.Build("get profile", db.Dialect.From("profiles").Select(profileCols...).
		Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return nil, err
	}
	p, err := scanProfile(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	ctx, span := telemetry.StartSpan(ctx, "profiles.create")
	defer span.End()

	sql, args, err := db.Build("create profile", db.Dialect.Insert("profiles").Rows(goqu.Record{
		"id":               p.ID,
		"email":            p.Email,
		"full_name":        p.FullName,
		"role":             string(p.Role),
		"specialization":   p.Specialization,
		"license_number":   p.LicenseNumber,
		"experience_years": p.ExperienceYears,
		"department":       p.Department,
		"phone":            p.Phone,
		"address":          p.Address,
		"date_of_birth":    p.DateOfBirth,
		"is_active":        p.IsActive,
	}).Returning("created_at", "updated_at").Prepared(true))
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err, "idx_profiles_email") {
		return ErrEmailInUse
	}
	return err
}

func patchRecord(patch Patch) goqu.Record {
	rec := goqu.Record{"updated_at": time.Now()}
	if patch.FullName != nil {
		rec["full_name"] = *patch.FullName
	}
	if patch.Role != nil {
		rec["role"] = string(*patch.Role)
	}
	if patch.Specialization != nil {
		rec["specialization"] = *patch.Specialization
	}
	if patch.LicenseNumber != nil {
		rec["license_number"] = *patch.LicenseNumber
	}
	if patch.ExperienceYears != nil {
		rec["experience_years"] = *patch.ExperienceYears
	}
	if patch.Department != nil {
		rec["department"] = *patch.Department
	}
	if patch.Phone != nil {
		rec["phone"] = *patch.Phone
	}
	if patch.Address != nil {
		rec["address"] = *patch.Address
	}
	if patch.DateOfBirth != nil {
		rec["date_of_birth"] = *patch.DateOfBirth
	}
	if patch.IsActive != nil {
		rec["is_active"] = *patch.IsActive
	}
	return rec
}

func (r *repoPG) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, "profiles.update")
	defer span.End()

	sql, args, err := db.Build("update profile", db.Dialect.Update("profiles").Set(patchRecord(patch)).
		Where(goqu.Ex{"id": id}).Returning(profileCols...).Prepared(true))
	if err != nil {
		return nil, err
	}
	p, err := scanProfile(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, "profiles.list")
	defer span.End()

	ds := db.Dialect.From("profiles").Select(profileCols...)
	var where []exp.Expression
	if f.Role != "" {
		where = append(where, goqu.C("role").Eq(string(f.Role)))
	}
	if f.ActiveOnly {
		where = append(where, goqu.C("is_active").IsTrue())
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		where = append(where, goqu.Or(goqu.C("full_name").ILike(pattern), goqu.C("email").ILike(pattern)))
	}
	if len(where) > 0 {
		ds = ds.Where(where...)
	}

	sql, args, err := db.Build("list profiles", ds.Order(goqu.C("full_name").Asc()).Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
