package dashboard

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/healthportal/portal/internal/domain/appointment"
	"github.com/healthportal/portal/internal/domain/medicalrecord"
	"github.com/healthportal/portal/internal/domain/message"
	"github.com/healthportal/portal/internal/domain/nurserequest"
	"github.com/healthportal/portal/internal/domain/payment"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/domain/room"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/session"
	"github.com/healthportal/portal/internal/shell"
)

type PatientStats struct {
	UpcomingAppointments int `json:"upcomingAppointments"`
	TotalRecords         int `json:"totalRecords"`
	UnreadMessages       int `json:"unreadMessages"`
	PendingPayments      int `json:"pendingPayments"`
	ActiveBookings       int `json:"activeBookings"`
	OpenNurseRequests    int `json:"openNurseRequests"`
}

type PatientOverview struct {
	Stats                PatientStats               `json:"stats"`
	UpcomingAppointments []*appointment.Appointment `json:"upcoming_appointments"`
	RecentRecords        []*medicalrecord.Record    `json:"recent_records"`
}

// RoomBooking is the view model of the room-booking section.
type RoomBooking struct {
	AvailableRooms []*room.Room    `json:"available_rooms"`
	Bookings       []*room.Booking `json:"bookings"`
}

// AppointmentBook is the patient's appointments with the doctors they can
// book with.
type AppointmentBook struct {
	Appointments []*appointment.Appointment `json:"appointments"`
	Doctors      []*profile.Profile         `json:"doctors"`
}

type Patient struct {
	base

	appointments  []*appointment.Appointment
	records       []*medicalrecord.Record
	payments      []*payment.Payment
	rooms         []*room.Room
	bookings      []*room.Booking
	nurseRequests []*nurserequest.Request
	doctors       []*profile.Profile
}

func NewPatient(user *session.User, deps Deps) *Patient {
	d := &Patient{}
	d.init(user, deps, profile.RolePatient)
	return d
}

func (d *Patient) Role() profile.Role { return profile.RolePatient }

func (d *Patient) Mount(ctx context.Context) error { return d.mount(ctx, d.load) }

func (d *Patient) Reload(ctx context.Context) error { return d.reload(ctx, d.load) }

func (d *Patient) load(ctx context.Context) error {
	me := d.me()
	var (
		appointments  []*appointment.Appointment
		records       []*medicalrecord.Record
		messages      []*message.Message
		payments      []*payment.Payment
		rooms         []*room.Room
		bookings      []*room.Booking
		nurseRequests []*nurserequest.Request
		doctors       []*profile.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { appointments = d.deps.Appointments.ListForPatient(gctx, me); return nil })
	g.Go(func() error { records = d.deps.Records.ListForPatient(gctx, me); return nil })
	g.Go(func() error { messages = d.deps.Messages.ListForUser(gctx, me); return nil })
	g.Go(func() error { payments = d.deps.Payments.ListForPatient(gctx, me); return nil })
	g.Go(func() error { rooms = d.deps.Rooms.ListAvailable(gctx); return nil })
	g.Go(func() error { bookings = d.deps.Rooms.ListBookingsForPatient(gctx, me); return nil })
	g.Go(func() error { nurseRequests = d.deps.NurseRequests.ListForPatient(gctx, me); return nil })
	g.Go(func() error { doctors = d.deps.Profiles.ListByRole(gctx, profile.RoleDoctor); return nil })
	if err := g.Wait(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.appointments = appointments
	d.records = records
	d.messages = messages
	d.payments = payments
	d.rooms = rooms
	d.bookings = bookings
	d.nurseRequests = nurseRequests
	d.doctors = doctors
	return nil
}

// Stats derives the overview counters from the loaded lists.
func (d *Patient) Stats() PatientStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats()
}

func (d *Patient) stats() PatientStats {
	now := d.now()
	s := PatientStats{
		TotalRecords:   len(d.records),
		UnreadMessages: d.unreadMessages(),
	}
	for _, a := range d.appointments {
		if a.Upcoming(now) {
			s.UpcomingAppointments++
		}
	}
	for _, p := range d.payments {
		if p.Status.Outstanding() {
			s.PendingPayments++
		}
	}
	for _, b := range d.bookings {
		if b.Status.Active() {
			s.ActiveBookings++
		}
	}
	for _, r := range d.nurseRequests {
		if r.Status == nurserequest.StatusPending || r.Status.Active() {
			s.OpenNurseRequests++
		}
	}
	return s
}

func (d *Patient) View(section shell.Section, q Query) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkMounted(); err != nil {
		return nil, err
	}

	switch section {
	case shell.SectionDashboard:
		now := d.now()
		upcoming := make([]*appointment.Appointment, 0, len(d.appointments))
		for _, a := range d.appointments {
			if a.Upcoming(now) {
				upcoming = append(upcoming, a)
			}
		}
		return PatientOverview{
			Stats:                d.stats(),
			UpcomingAppointments: head(upcoming, 5),
			RecentRecords:        head(d.records, 5),
		}, nil
	case shell.SectionAppointments:
		return AppointmentBook{
			Appointments: appointmentMatcher.apply(d.appointments, q),
			Doctors:      d.doctors,
		}, nil
	case shell.SectionMedicalRecords:
		return recordMatcher.apply(d.records, q), nil
	case shell.SectionPayments:
		return paymentMatcher.apply(d.payments, q), nil
	case shell.SectionRoomBooking:
		return RoomBooking{
			AvailableRooms: roomMatcher.apply(d.rooms, Query{Search: q.Search}),
			Bookings:       bookingMatcher.apply(d.bookings, q),
		}, nil
	case shell.SectionNurseRequests:
		return nurseRequestMatcher.apply(d.nurseRequests, q), nil
	}
	if v, ok := d.viewShared(section, q); ok {
		return v, nil
	}
	return nil, ErrUnknownSection
}

func (d *Patient) Apply(ctx context.Context, a Action) Result {
	switch a.Name {
	case "book-appointment":
		return d.bookAppointment(ctx, a)
	case "cancel-appointment":
		return d.cancelAppointment(ctx, a)
	case "pay-payment":
		return d.payPayment(ctx, a)
	case "book-room":
		return d.bookRoom(ctx, a)
	case "request-nurse":
		return d.requestNurse(ctx, a)
	}
	if r, ok := d.applyShared(ctx, a); ok {
		return r
	}
	return Fail(apperr.Validation("unknown action %q", a.Name))
}

type bookAppointmentInput struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"appointment_date"`
	Time     string    `json:"appointment_time"`
	Type     string    `json:"type"`
	Notes    *string   `json:"notes"`
}

func (d *Patient) bookAppointment(ctx context.Context, a Action) Result {
	var in bookAppointmentInput
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
		PatientID: d.me(),
		DoctorID:  in.DoctorID,
		Date:      date,
		Time:      in.Time,
		Type:      in.Type,
		Status:    appointment.StatusPending,
		Notes:     in.Notes,
	})
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.appointments = append(d.appointments, created)
	d.mu.Unlock()
	return Ok(created)
}

func (d *Patient) cancelAppointment(ctx context.Context, a Action) Result {
	var in idInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	d.mu.RLock()
	i := indexOf(d.appointments, func(x *appointment.Appointment) bool { return x.ID == in.ID })
	d.mu.RUnlock()
	if i < 0 {
		return Fail(appointment.ErrNotFound)
	}

	updated, err := d.deps.Appointments.UpdateStatus(ctx, in.ID, appointment.StatusCancelled)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.appointments, updated, func(x *appointment.Appointment) bool { return x.ID == updated.ID })
	d.mu.Unlock()
	return Ok(updated)
}

type payInput struct {
	ID     uuid.UUID `json:"id"`
	Method string    `json:"payment_method"`
}

func (d *Patient) payPayment(ctx context.Context, a Action) Result {
	var in payInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	d.mu.RLock()
	i := indexOf(d.payments, func(p *payment.Payment) bool { return p.ID == in.ID })
	outstanding := i >= 0 && d.payments[i].Status.Outstanding()
	d.mu.RUnlock()
	if i < 0 {
		return Fail(payment.ErrNotFound)
	}
	if !outstanding {
		return Fail(apperr.Conflict("payment is not outstanding"))
	}
	if in.Method == "" {
		in.Method = "card"
	}

	updated, err := d.deps.Payments.UpdateStatus(ctx, in.ID, payment.StatusPaid, in.Method)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.payments, updated, func(p *payment.Payment) bool { return p.ID == updated.ID })
	d.mu.Unlock()
	return Ok(updated)
}

type bookRoomInput struct {
	RoomID   uuid.UUID `json:"room_id"`
	CheckIn  string    `json:"check_in_date"`
	CheckOut string    `json:"check_out_date"`
	Notes    *string   `json:"notes"`
}

func (d *Patient) bookRoom(ctx context.Context, a Action) Result {
	var in bookRoomInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	checkIn, err := parseDate("check_in_date", in.CheckIn)
	if err != nil {
		return Fail(err)
	}
	checkOut, err := parseDate("check_out_date", in.CheckOut)
	if err != nil {
		return Fail(err)
	}
	created, err := d.deps.Rooms.CreateBooking(ctx, &room.Booking{
		PatientID: d.me(),
		RoomID:    in.RoomID,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Notes:     in.Notes,
	})
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.bookings = append([]*room.Booking{created}, d.bookings...)
	d.mu.Unlock()
	return Ok(created)
}

type requestNurseInput struct {
	RequestType   string   `json:"request_type"`
	Address       string   `json:"address"`
	RequestedDate string   `json:"requested_date"`
	RequestedTime string   `json:"requested_time"`
	DurationHours int      `json:"duration_hours"`
	Priority      string   `json:"priority"`
	Services      []string `json:"services"`
	Notes         *string  `json:"notes"`
}

func (d *Patient) requestNurse(ctx context.Context, a Action) Result {
	var in requestNurseInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	date, err := parseDate("requested_date", in.RequestedDate)
	if err != nil {
		return Fail(err)
	}
	created, err := d.deps.NurseRequests.Create(ctx, &nurserequest.Request{
		PatientID:     d.me(),
		RequestType:   in.RequestType,
		Address:       in.Address,
		RequestedDate: date,
		RequestedTime: in.RequestedTime,
		DurationHours: in.DurationHours,
		Priority:      in.Priority,
		Services:      in.Services,
		Notes:         in.Notes,
	})
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.nurseRequests = append([]*nurserequest.Request{created}, d.nurseRequests...)
	d.mu.Unlock()
	return Ok(created)
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
