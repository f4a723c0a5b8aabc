package dashboard

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/domain/appointment"
	"github.com/healthportal/portal/internal/domain/auditlog"
	"github.com/healthportal/portal/internal/domain/medicalrecord"
	"github.com/healthportal/portal/internal/domain/message"
	"github.com/healthportal/portal/internal/domain/nurserequest"
	"github.com/healthportal/portal/internal/domain/payment"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/domain/room"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/platform/backend"
	"github.com/healthportal/portal/internal/session"
)

var errRemote = errors.New("remote unavailable")

// In-memory repositories behind the real appointment, payment and profile
// services.

type appointmentRepo struct {
	mu    sync.Mutex
	items []*appointment.Appointment
	fail  error
}

func (r *appointmentRepo) List(_ context.Context, f appointment.Filter) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*appointment.Appointment{}
	for _, a := range r.items {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *appointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.items {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *appointmentRepo) Create(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	a.ID = uuid.New()
	cp := *a
	r.items = append(r.items, &cp)
	return nil
}

func (r *appointmentRepo) Update(_ context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	return nil, errors.New("not used")
}

func (r *appointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status appointment.Status) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	for _, a := range r.items {
		if a.ID == id {
			a.Status = status
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *appointmentRepo) Delete(context.Context, uuid.UUID) error { return nil }

type paymentRepo struct {
	mu    sync.Mutex
	items []*payment.Payment
	fail  error
}

func (r *paymentRepo) List(_ context.Context, f payment.Filter) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*payment.Payment{}
	for _, p := range r.items {
		if f.PatientID != nil && p.PatientID != *f.PatientID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *paymentRepo) GetByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *paymentRepo) Create(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	cp := *p
	r.items = append(r.items, &cp)
	return nil
}

func (r *paymentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status payment.Status, method *string, paidAt *time.Time) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	for _, p := range r.items {
		if p.ID == id {
			p.Status = status
			if method != nil {
				p.Method = method
			}
			if paidAt != nil {
				p.PaidAt = paidAt
			}
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

type profileRepo struct {
	mu    sync.Mutex
	items []*profile.Profile
}

func (r *profileRepo) GetByID(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *profileRepo) Create(_ context.Context, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if strings.EqualFold(existing.Email, p.Email) {
			return profile.ErrEmailInUse
		}
	}
	cp := *p
	r.items = append(r.items, &cp)
	return nil
}

func (r *profileRepo) Update(_ context.Context, id uuid.UUID, patch profile.Patch) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.ID == id {
			patch.Apply(p)
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *profileRepo) List(_ context.Context, f profile.Filter) ([]*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*profile.Profile{}
	for _, p := range r.items {
		if f.Role != "" && p.Role != f.Role {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// Gateway fakes for the remaining domains.

type fakeRecords struct{ items []*medicalrecord.Record }

func (f *fakeRecords) ListForPatient(_ context.Context, id uuid.UUID) []*medicalrecord.Record {
	out := []*medicalrecord.Record{}
	for _, r := range f.items {
		if r.PatientID == id {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeRecords) ListForDoctor(_ context.Context, id uuid.UUID) []*medicalrecord.Record {
	out := []*medicalrecord.Record{}
	for _, r := range f.items {
		if r.DoctorID == id {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeRecords) Create(_ context.Context, m *medicalrecord.Record) (*medicalrecord.Record, error) {
	if m.Title == "" {
		return nil, apperr.Required("title")
	}
	m.ID = uuid.New()
	f.items = append(f.items, m)
	return m, nil
}

type fakeRooms struct {
	rooms    []*room.Room
	bookings []*room.Booking
}

func (f *fakeRooms) List(context.Context) []*room.Room { return append([]*room.Room{}, f.rooms...) }

func (f *fakeRooms) ListAvailable(context.Context) []*room.Room {
	out := []*room.Room{}
	for _, r := range f.rooms {
		if r.Status == room.StatusAvailable {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeRooms) Create(_ context.Context, rm *room.Room) (*room.Room, error) {
	rm.ID = uuid.New()
	f.rooms = append(f.rooms, rm)
	return rm, nil
}

func (f *fakeRooms) Update(_ context.Context, rm *room.Room) (*room.Room, error) {
	for i, r := range f.rooms {
		if r.ID == rm.ID {
			f.rooms[i] = rm
			return rm, nil
		}
	}
	return nil, room.ErrNotFound
}

func (f *fakeRooms) Delete(_ context.Context, id uuid.UUID) error {
	for i, r := range f.rooms {
		if r.ID == id {
			f.rooms = append(f.rooms[:i], f.rooms[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRooms) ListBookingsForPatient(_ context.Context, id uuid.UUID) []*room.Booking {
	out := []*room.Booking{}
	for _, b := range f.bookings {
		if b.PatientID == id {
			out = append(out, b)
		}
	}
	return out
}

func (f *fakeRooms) ListBookings(context.Context) []*room.Booking {
	return append([]*room.Booking{}, f.bookings...)
}

func (f *fakeRooms) CreateBooking(_ context.Context, b *room.Booking) (*room.Booking, error) {
	b.ID = uuid.New()
	b.Status = room.BookingPending
	f.bookings = append(f.bookings, b)
	return b, nil
}

func (f *fakeRooms) UpdateBookingStatus(_ context.Context, id uuid.UUID, status room.BookingStatus) (*room.Booking, error) {
	for _, b := range f.bookings {
		if b.ID == id {
			cp := *b
			cp.Status = status
			return &cp, nil
		}
	}
	return nil, room.ErrBookingNotFound
}

type fakeMessages struct{ items []*message.Message }

func (f *fakeMessages) ListForUser(_ context.Context, id uuid.UUID) []*message.Message {
	out := []*message.Message{}
	for _, m := range f.items {
		if m.SenderID == id || m.RecipientID == id {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessages) Send(_ context.Context, m *message.Message) (*message.Message, error) {
	if m.Subject == "" {
		return nil, apperr.Required("subject")
	}
	m.ID = uuid.New()
	f.items = append(f.items, m)
	return m, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, id uuid.UUID) (*message.Message, error) {
	for _, m := range f.items {
		if m.ID == id {
			cp := *m
			cp.IsRead = true
			return &cp, nil
		}
	}
	return nil, message.ErrNotFound
}

type fakeNurseRequests struct {
	items     []*nurserequest.Request
	acceptErr error
}

func (f *fakeNurseRequests) ListForPatient(_ context.Context, id uuid.UUID) []*nurserequest.Request {
	out := []*nurserequest.Request{}
	for _, r := range f.items {
		if r.PatientID == id {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeNurseRequests) ListForNurse(_ context.Context, id uuid.UUID) []*nurserequest.Request {
	out := []*nurserequest.Request{}
	for _, r := range f.items {
		if r.NurseID != nil && *r.NurseID == id {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeNurseRequests) ListOpen(context.Context) []*nurserequest.Request {
	out := []*nurserequest.Request{}
	for _, r := range f.items {
		if r.Open() {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeNurseRequests) Create(_ context.Context, r *nurserequest.Request) (*nurserequest.Request, error) {
	r.ID = uuid.New()
	r.Status = nurserequest.StatusPending
	f.items = append(f.items, r)
	return r, nil
}

func (f *fakeNurseRequests) Accept(_ context.Context, id, nurseID uuid.UUID) (*nurserequest.Request, error) {
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	for _, r := range f.items {
		if r.ID == id {
			cp := *r
			cp.NurseID = &nurseID
			cp.Status = nurserequest.StatusAccepted
			return &cp, nil
		}
	}
	return nil, nurserequest.ErrNotFound
}

func (f *fakeNurseRequests) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*nurserequest.Request, error) {
	for _, r := range f.items {
		if r.ID == id {
			cp := *r
			cp.Status = nurserequest.Status(status)
			return &cp, nil
		}
	}
	return nil, nurserequest.ErrNotFound
}

type fakeAudit struct{ items []*auditlog.Entry }

func (f *fakeAudit) List(_ context.Context, limit int) []*auditlog.Entry {
	return head(append([]*auditlog.Entry{}, f.items...), limit)
}

// fakeSelf updates one user's profile the way the session store does.
type fakeSelf struct {
	repo *profileRepo
	id   uuid.UUID
}

func (f *fakeSelf) UpdateProfile(ctx context.Context, patch profile.Patch) (*profile.Profile, error) {
	patch.Role = nil
	patch.IsActive = nil
	return f.repo.Update(ctx, f.id, patch)
}

// world wires every gateway for one test.
type world struct {
	appointments *appointmentRepo
	payments     *paymentRepo
	profiles     *profileRepo
	records      *fakeRecords
	rooms        *fakeRooms
	messages     *fakeMessages
	nurse        *fakeNurseRequests
	audit        *fakeAudit
	now          time.Time
}

func newWorld() *world {
	return &world{
		appointments: &appointmentRepo{},
		payments:     &paymentRepo{},
		profiles:     &profileRepo{},
		records:      &fakeRecords{},
		rooms:        &fakeRooms{},
		messages:     &fakeMessages{},
		nurse:        &fakeNurseRequests{},
		audit:        &fakeAudit{},
		now:          time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (w *world) deps() Deps {
	logger := zerolog.New(io.Discard)
	return Deps{
		Profiles:      profile.NewService(w.profiles, logger),
		Appointments:  appointment.NewService(w.appointments, logger),
		Records:       w.records,
		Rooms:         w.rooms,
		Payments:      payment.NewService(w.payments, logger),
		Messages:      w.messages,
		NurseRequests: w.nurse,
		AuditLogs:     w.audit,
		Logger:        logger,
		Now:           func() time.Time { return w.now },
	}
}

// person adds a profile and returns its signed-in user.
func (w *world) person(role profile.Role, name string) *session.User {
	id := uuid.New()
	p := &profile.Profile{ID: id, Email: name + "@example.com", FullName: name, Role: role, IsActive: true}
	w.profiles.items = append(w.profiles.items, p)
	cp := *p
	return &session.User{Identity: backend.Identity{ID: id, Email: p.Email}, Profile: &cp}
}

func (w *world) day(offset int) time.Time {
	y, m, d := w.now.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, time.UTC)
}
