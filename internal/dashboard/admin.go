package dashboard

import (
	"context"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/healthportal/portal/internal/domain/appointment"
	"github.com/healthportal/portal/internal/domain/auditlog"
	"github.com/healthportal/portal/internal/domain/payment"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/domain/room"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/session"
	"github.com/healthportal/portal/internal/shell"
)

// auditLimit is how many audit entries the admin dashboard loads.
const auditLimit = 100

type AdminStats struct {
	TotalUsers          int     `json:"totalUsers"`
	Doctors             int     `json:"doctors"`
	Nurses              int     `json:"nurses"`
	Patients            int     `json:"patients"`
	TotalAppointments   int     `json:"totalAppointments"`
	PendingAppointments int     `json:"pendingAppointments"`
	AvailableRooms      int     `json:"availableRooms"`
	OccupiedRooms       int     `json:"occupiedRooms"`
	PendingPayments     int     `json:"pendingPayments"`
	TotalRevenue        float64 `json:"totalRevenue"`
}

type AdminOverview struct {
	Stats        AdminStats                 `json:"stats"`
	RecentUsers  []*profile.Profile         `json:"recent_users"`
	Appointments []*appointment.Appointment `json:"recent_appointments"`
	Activity     []*auditlog.Entry          `json:"recent_activity"`
}

// RoomBoard is the view model of the admin rooms section.
type RoomBoard struct {
	Rooms    []*room.Room    `json:"rooms"`
	Bookings []*room.Booking `json:"bookings"`
}

type Admin struct {
	base

	users        []*profile.Profile
	appointments []*appointment.Appointment
	rooms        []*room.Room
	bookings     []*room.Booking
	payments     []*payment.Payment
	audit        []*auditlog.Entry
}

func NewAdmin(user *session.User, deps Deps) *Admin {
	d := &Admin{}
	d.init(user, deps, profile.RoleAdmin)
	return d
}

func (d *Admin) Role() profile.Role { return profile.RoleAdmin }

func (d *Admin) Mount(ctx context.Context) error { return d.mount(ctx, d.load) }

func (d *Admin) Reload(ctx context.Context) error { return d.reload(ctx, d.load) }

func (d *Admin) load(ctx context.Context) error {
	var (
		users        []*profile.Profile
		appointments []*appointment.Appointment
		rooms        []*room.Room
		bookings     []*room.Booking
		payments     []*payment.Payment
		audit        []*auditlog.Entry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { users = d.deps.Profiles.List(gctx, profile.Filter{}); return nil })
	g.Go(func() error { appointments = d.deps.Appointments.ListAll(gctx); return nil })
	g.Go(func() error { rooms = d.deps.Rooms.List(gctx); return nil })
	g.Go(func() error { bookings = d.deps.Rooms.ListBookings(gctx); return nil })
	g.Go(func() error { payments = d.deps.Payments.ListAll(gctx); return nil })
	g.Go(func() error { audit = d.deps.AuditLogs.List(gctx, auditLimit); return nil })
	if err := g.Wait(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = users
	d.appointments = appointments
	d.rooms = rooms
	d.bookings = bookings
	d.payments = payments
	d.audit = audit
	return nil
}

func (d *Admin) Stats() AdminStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats()
}

func (d *Admin) stats() AdminStats {
	s := AdminStats{TotalUsers: len(d.users), TotalAppointments: len(d.appointments)}
	for _, u := range d.users {
		switch u.Role {
		case profile.RoleDoctor:
			s.Doctors++
		case profile.RoleNurse:
			s.Nurses++
		case profile.RolePatient:
			s.Patients++
		}
	}
	for _, a := range d.appointments {
		if a.Status == appointment.StatusPending {
			s.PendingAppointments++
		}
	}
	for _, r := range d.rooms {
		switch r.Status {
		case room.StatusAvailable:
			s.AvailableRooms++
		case room.StatusOccupied:
			s.OccupiedRooms++
		}
	}
	var revenue float64
	for _, p := range d.payments {
		switch {
		case p.Status == payment.StatusPaid:
			revenue += p.Amount
		case p.Status.Outstanding():
			s.PendingPayments++
		}
	}
	s.TotalRevenue = math.Round(revenue*100) / 100
	return s
}

func (d *Admin) View(section shell.Section, q Query) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkMounted(); err != nil {
		return nil, err
	}

	switch section {
	case shell.SectionDashboard:
		return AdminOverview{
			Stats:        d.stats(),
			RecentUsers:  head(d.users, 5),
			Appointments: head(d.appointments, 5),
			Activity:     head(d.audit, 10),
		}, nil
	case shell.SectionUsers:
		return profileMatcher.apply(d.users, q), nil
	case shell.SectionAppointments:
		return appointmentMatcher.apply(d.appointments, q), nil
	case shell.SectionRooms:
		return RoomBoard{
			Rooms:    roomMatcher.apply(d.rooms, q),
			Bookings: bookingMatcher.apply(d.bookings, Query{Search: q.Search}),
		}, nil
	case shell.SectionPayments:
		return paymentMatcher.apply(d.payments, q), nil
	case shell.SectionAuditLogs:
		return auditMatcher.apply(d.audit, q), nil
	case shell.SectionSettings:
		v, _ := d.viewShared(section, q)
		return v, nil
	}
	return nil, ErrUnknownSection
}

func (d *Admin) Apply(ctx context.Context, a Action) Result {
	switch a.Name {
	case "create-user-profile":
		return d.createUser(ctx, a)
	case "update-user":
		return d.updateUser(ctx, a)
	case "deactivate-user":
		return d.deactivateUser(ctx, a)
	case "create-appointment":
		return d.createAppointment(ctx, a)
	case "update-appointment-status":
		return d.updateAppointmentStatus(ctx, a)
	case "create-room":
		return d.createRoom(ctx, a)
	case "update-room":
		return d.updateRoom(ctx, a)
	case "delete-room":
		return d.deleteRoom(ctx, a)
	case "create-payment":
		return d.createPayment(ctx, a)
	case "update-payment-status":
		return d.updatePaymentStatus(ctx, a)
	case "update-booking-status":
		return d.updateBookingStatus(ctx, a)
	}
	return Fail(apperr.Validation("unknown action %q", a.Name))
}

func sameUser(id uuid.UUID) func(*profile.Profile) bool {
	return func(p *profile.Profile) bool { return p.ID == id }
}

// createUser adds a directory record for a person without an account. No
// identity owns its id, and the email stays reserved, so the person cannot
// later register under it.
func (d *Admin) createUser(ctx context.Context, a Action) Result {
	var p profile.Profile
	if err := a.decode(&p); err != nil {
		return Fail(err)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := d.deps.Profiles.Create(ctx, &p); err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.users = append([]*profile.Profile{&p}, d.users...)
	d.mu.Unlock()
	return Ok(&p)
}

type updateUserInput struct {
	ID    uuid.UUID     `json:"id"`
	Patch profile.Patch `json:"patch"`
}

func (d *Admin) updateUser(ctx context.Context, a Action) Result {
	var in updateUserInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	updated, err := d.deps.Profiles.Update(ctx, in.ID, in.Patch)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.users, updated, sameUser(updated.ID))
	d.mu.Unlock()
	return Ok(updated)
}

func (d *Admin) deactivateUser(ctx context.Context, a Action) Result {
	var in idInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	if in.ID == d.me() {
		return Fail(apperr.Validation("cannot deactivate your own account"))
	}
	updated, err := d.deps.Profiles.Deactivate(ctx, in.ID)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.users, updated, sameUser(updated.ID))
	d.mu.Unlock()
	return Ok(updated)
}

type adminAppointmentInput struct {
	PatientID uuid.UUID `json:"patient_id"`
	bookAppointmentInput
	Status appointment.Status `json:"status"`
}

func (d *Admin) createAppointment(ctx context.Context, a Action) Result {
	var in adminAppointmentInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	date, err := parseDate("appointment_date", in.Date)
	if err != nil {
		return Fail(err)
	}
	if err := requireDoctor(ctx, d.deps.Profiles, in.DoctorID); err != nil {
		return Fail(err)
	}
	created, err := d.deps.Appointments.Create(ctx, &appointment.Appointment{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Date:      date,
		Time:      in.Time,
		Type:      in.Type,
		Status:    in.Status,
		Notes:     in.Notes,
	})
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.appointments = append([]*appointment.Appointment{created}, d.appointments...)
	d.mu.Unlock()
	return Ok(created)
}

func (d *Admin) updateAppointmentStatus(ctx context.Context, a Action) Result {
	var in statusInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	status := appointment.Status(in.Status)
	if !status.Valid() {
		return Fail(apperr.Validation("invalid status: %s", in.Status))
	}
	updated, err := d.deps.Appointments.UpdateStatus(ctx, in.ID, status)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.appointments, updated, func(x *appointment.Appointment) bool { return x.ID == updated.ID })
	d.mu.Unlock()
	return Ok(updated)
}

func sameRoom(id uuid.UUID) func(*room.Room) bool {
	return func(r *room.Room) bool { return r.ID == id }
}

func (d *Admin) createRoom(ctx context.Context, a Action) Result {
	var rm room.Room
	if err := a.decode(&rm); err != nil {
		return Fail(err)
	}
	created, err := d.deps.Rooms.Create(ctx, &rm)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.rooms = append(d.rooms, created)
	d.mu.Unlock()
	return Ok(created)
}

func (d *Admin) updateRoom(ctx context.Context, a Action) Result {
	var rm room.Room
	if err := a.decode(&rm); err != nil {
		return Fail(err)
	}
	if rm.ID == uuid.Nil {
		return Fail(apperr.Required("id"))
	}
	updated, err := d.deps.Rooms.Update(ctx, &rm)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.rooms, updated, sameRoom(updated.ID))
	d.mu.Unlock()
	return Ok(updated)
}

func (d *Admin) deleteRoom(ctx context.Context, a Action) Result {
	var in idInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	if err := d.deps.Rooms.Delete(ctx, in.ID); err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.rooms = removeAt(d.rooms, sameRoom(in.ID))
	d.mu.Unlock()
	return Ok(in)
}

type paymentInput struct {
	PatientID   uuid.UUID      `json:"patient_id"`
	Amount      float64        `json:"amount"`
	Description string         `json:"description"`
	DueDate     string         `json:"due_date"`
	Status      payment.Status `json:"status"`
}

func (d *Admin) createPayment(ctx context.Context, a Action) Result {
	var in paymentInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	p := &payment.Payment{
		PatientID:   in.PatientID,
		Amount:      in.Amount,
		Description: in.Description,
		Status:      in.Status,
	}
	if in.DueDate != "" {
		due, err := parseDate("due_date", in.DueDate)
		if err != nil {
			return Fail(err)
		}
		p.DueDate = &due
	}
	created, err := d.deps.Payments.Create(ctx, p)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.payments = append([]*payment.Payment{created}, d.payments...)
	d.mu.Unlock()
	return Ok(created)
}

type paymentStatusInput struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Method string    `json:"payment_method"`
}

func (d *Admin) updatePaymentStatus(ctx context.Context, a Action) Result {
	var in paymentStatusInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	updated, err := d.deps.Payments.UpdateStatus(ctx, in.ID, payment.Status(in.Status), in.Method)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.payments, updated, func(p *payment.Payment) bool { return p.ID == updated.ID })
	d.mu.Unlock()
	return Ok(updated)
}

func (d *Admin) updateBookingStatus(ctx context.Context, a Action) Result {
	var in statusInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	updated, err := d.deps.Rooms.UpdateBookingStatus(ctx, in.ID, room.BookingStatus(in.Status))
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.bookings, updated, func(b *room.Booking) bool { return b.ID == updated.ID })
	d.mu.Unlock()
	return Ok(updated)
}
