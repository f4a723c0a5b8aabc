package room

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

var roomCols = []interface{}{
	"id", "room_number", "room_type", "floor", "capacity", "daily_rate",
	"status", "equipment", "created_at", "updated_at",
}

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	err := row.Scan(&rm.ID, &rm.Number, &rm.RoomType, &rm.Floor, &rm.Capacity, &rm.DailyRate,
		&rm.Status, &rm.Equipment, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

func scanRooms(rows pgx.Rows) ([]*Room, error) {
	defer rows.Close()
	var items []*Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rm)
	}
	return items, rows.Err()
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Room, error) {
	ctx, span := telemetry.StartSpan(ctx, "rooms.list")
	defer span.End()

	ds := db.Dialect.From("rooms").Select(roomCols...)
	if f.Status != "" {
		ds = ds.Where(goqu.Ex{"status": string(f.Status)})
	}
	sql, args, err := db.Build("list rooms", ds.Order(goqu.C("room_number").Asc()).Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanRooms(rows)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	ctx, span := telemetry.StartSpan(ctx, "rooms.get")
	defer span.End()

	sql, args, err := db.Build("get room", db.Dialect.From("rooms").Select(roomCols...).
		Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return nil, err
	}
	rm, err := scanRoom(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rm, err
}

func (r *repoPG) Create(ctx context.Context, rm *Room) error {
	ctx, span := telemetry.StartSpan(ctx, "rooms.create")
	defer span.End()

	rm.ID = uuid.New()
	sql, args, err := db.Build("create room", db.Dialect.Insert("rooms").Rows(goqu.Record{
		"id":          rm.ID,
		"room_number": rm.Number,
		"room_type":   rm.RoomType,
		"floor":       rm.Floor,
		"capacity":    rm.Capacity,
		"daily_rate":  rm.DailyRate,
		"status":      string(rm.Status),
		"equipment":   db.JSON(rm.Equipment),
	}).Returning("created_at", "updated_at").Prepared(true))
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&rm.CreatedAt, &rm.UpdatedAt)
}

func (r *repoPG) updateReturning(ctx context.Context, op string, id uuid.UUID, rec goqu.Record) (*Room, error) {
	rec["updated_at"] = time.Now()
	sql, args, err := db.Build(op, db.Dialect.Update("rooms").Set(rec).
		Where(goqu.Ex{"id": id}).Returning(roomCols...).Prepared(true))
	if err != nil {
		return nil, err
	}
	rm, err := scanRoom(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rm, err
}

func (r *repoPG) Update(ctx context.Context, rm *Room) (*Room, error) {
	ctx, span := telemetry.StartSpan(ctx, "rooms.update")
	defer span.End()

	return r.updateReturning(ctx, "update room", rm.ID, goqu.Record{
		"room_number": rm.Number,
		"room_type":   rm.RoomType,
		"floor":       rm.Floor,
		"capacity":    rm.Capacity,
		"daily_rate":  rm.DailyRate,
		"status":      string(rm.Status),
		"equipment":   db.JSON(rm.Equipment),
	})
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Room, error) {
	ctx, span := telemetry.StartSpan(ctx, "rooms.update_status")
	defer span.End()

	return r.updateReturning(ctx, "update room status", id, goqu.Record{"status": string(status)})
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "rooms.delete")
	defer span.End()

	sql, args, err := db.Build("delete room", db.Dialect.Delete("rooms").Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, sql, args...)
	return err
}

// ── Bookings ──

func selectBookings() *goqu.SelectDataset {
	return db.Dialect.From(goqu.T("room_bookings").As("b")).
		Join(goqu.T("rooms").As("r"), goqu.On(goqu.I("r.id").Eq(goqu.I("b.room_id")))).
		Select(
			"b.id", "b.patient_id", "b.room_id", "b.check_in_date", "b.check_out_date",
			"b.total_cost", "b.status", "b.notes", "b.created_at", "b.updated_at",
			"r.room_number",
		)
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.PatientID, &b.RoomID, &b.CheckIn, &b.CheckOut,
		&b.TotalCost, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt, &b.RoomNumber)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repoPG) ListBookings(ctx context.Context, f BookingFilter) ([]*Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "room_bookings.list")
	defer span.End()

	ds := selectBookings()
	if f.PatientID != nil {
		ds = ds.Where(goqu.I("b.patient_id").Eq(*f.PatientID))
	}
	sql, args, err := db.Build("list bookings", ds.Order(goqu.I("b.check_in_date").Desc()).Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *repoPG) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "room_bookings.get")
	defer span.End()

	sql, args, err := db.Build("get booking", selectBookings().Where(goqu.I("b.id").Eq(id)).Prepared(true))
	if err != nil {
		return nil, err
	}
	b, err := scanBooking(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *repoPG) CreateBooking(ctx context.Context, b *Booking) error {
	ctx, span := telemetry.StartSpan(ctx, "room_bookings.create")
	defer span.End()

	b.ID = uuid.New()
	sql, args, err := db.Build("create booking", db.Dialect.Insert("room_bookings").Rows(goqu.Record{
		"id":             b.ID,
		"patient_id":     b.PatientID,
		"room_id":        b.RoomID,
		"check_in_date":  b.CheckIn,
		"check_out_date": b.CheckOut,
		"total_cost":     b.TotalCost,
		"status":         string(b.Status),
		"notes":          b.Notes,
	}).Returning("created_at", "updated_at").Prepared(true))
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *repoPG) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (*Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "room_bookings.update_status")
	defer span.End()

	sql, args, err := db.Build("update booking status", db.Dialect.Update("room_bookings").Set(goqu.Record{
		"status":     string(status),
		"updated_at": time.Now(),
	}).Where(goqu.Ex{"id": id}).Prepared(true))
	if err != nil {
		return nil, err
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil || tag.RowsAffected() == 0 {
		return nil, err
	}
	return r.GetBooking(ctx, id)
}
