package backend

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

type identityStorePG struct{ pool *pgxpool.Pool }

// NewIdentityStorePG stores identities in the auth_identities table.
func NewIdentityStorePG(pool *pgxpool.Pool) IdentityStore {
	return &identityStorePG{pool: pool}
}

func (r *identityStorePG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

var identityCols = []interface{}{"id", "email", "password_hash", "metadata", "refresh_hash", "refresh_expiry", "created_at"}

func scanIdentity(row pgx.Row) (*StoredIdentity, error) {
	var s StoredIdentity
	err := row.Scan(&s.ID, &s.Email, &s.PasswordHash, &s.Metadata, &s.RefreshHash, &s.RefreshExpiry, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *identityStorePG) getBy(ctx context.Context, op string, where goqu.Ex) (*StoredIdentity, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth_identities."+op)
	defer span.End()

	sql, args, err := db.Build(op, db.Dialect.From("auth_identities").Select(identityCols...).Where(where).Prepared(true))
	if err != nil {
		return nil, err
	}
	return scanIdentity(r.conn(ctx).QueryRow(ctx, sql, args...))
}

func (r *identityStorePG) Create(ctx context.Context, s *StoredIdentity) error {
	ctx, span := telemetry.StartSpan(ctx, "auth_identities.create")
	defer span.End()

	sql, args, err := db.Build("create identity", db.Dialect.Insert("auth_identities").Rows(goqu.Record{
		"id":            s.ID,
		"email":         s.Email,
		"password_hash": s.PasswordHash,
		"metadata":      db.JSON(s.Metadata),
	}).Returning("created_at").Prepared(true))
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&s.CreatedAt)
}

func (r *identityStorePG) GetByEmail(ctx context.Context, email string) (*StoredIdentity, error) {
	return r.getBy(ctx, "get_by_email", goqu.Ex{"email": email})
}

func (r *identityStorePG) GetByID(ctx context.Context, id uuid.UUID) (*StoredIdentity, error) {
	return r.getBy(ctx, "get_by_id", goqu.Ex{"id": id})
}

func (r *identityStorePG) GetByRefreshHash(ctx context.Context, hash string) (*StoredIdentity, error) {
	return r.getBy(ctx, "get_by_refresh", goqu.Ex{"refresh_hash": hash})
}

func (r *identityStorePG) SetRefresh(ctx context.Context, id uuid.UUID, hash *string, expiry *time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "auth_identities.set_refresh")
	defer span.End()

	record := goqu.Record{
		"refresh_hash":   hash,
		"refresh_expiry": expiry,
		"updated_at":     time.Now(),
	}
	if hash != nil {
		record["last_sign_in"] = time.Now()
	}
	sql, args, err := db.Build("set refresh", db.Dialect.Update("auth_identities").Set(record).Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, sql, args...)
	return err
}

func (r *identityStorePG) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "auth_identities.delete")
	defer span.End()

	sql, args, err := db.Build("delete identity", db.Dialect.Delete("auth_identities").Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, sql, args...)
	return err
}

func (r *identityStorePG) CreateReset(ctx context.Context, reset *PasswordReset) error {
	ctx, span := telemetry.StartSpan(ctx, "auth_password_resets.create")
	defer span.End()

	sql, args, err := db.Build("create reset", db.Dialect.Insert("auth_password_resets").Rows(goqu.Record{
		"id":           reset.ID,
		"identity_id":  reset.IdentityID,
		"email":        reset.Email,
		"token_hash":   reset.TokenHash,
		"redirect_url": reset.RedirectURL,
		"expires_at":   reset.ExpiresAt,
	}).Prepared(true))
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, sql, args...)
	return err
}
