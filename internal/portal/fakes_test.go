package portal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

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
	"github.com/healthportal/portal/internal/platform/middleware"
)

type fakeProvider struct {
	mu         sync.Mutex
	passwords  map[string]string
	identities map[string]backend.Identity
	resets     []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{passwords: map[string]string{}, identities: map[string]backend.Identity{}}
}

func (f *fakeProvider) add(email, password string, metadata map[string]interface{}) backend.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := backend.Identity{ID: uuid.New(), Email: email, Metadata: metadata}
	f.passwords[email] = password
	f.identities[email] = id
	return id
}

func sessionFor(id backend.Identity) *backend.Session {
	return &backend.Session{
		AccessToken:  "access-" + id.ID.String(),
		RefreshToken: "refresh-" + id.ID.String(),
		ExpiresAt:    time.Now().Add(time.Hour),
		Identity:     id,
	}
}

func (f *fakeProvider) SignIn(_ context.Context, email, password string) (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.passwords[email]; !ok || pw != password {
		return nil, backend.ErrInvalidCredentials
	}
	return sessionFor(f.identities[email]), nil
}

func (f *fakeProvider) SignUp(_ context.Context, email, password string, metadata map[string]interface{}) (*backend.Identity, *backend.Session, error) {
	f.mu.Lock()
	_, taken := f.identities[email]
	f.mu.Unlock()
	if taken {
		return nil, nil, backend.ErrEmailTaken
	}
	id := f.add(email, password, metadata)
	return &id, sessionFor(id), nil
}

func (f *fakeProvider) SignOut(context.Context, string) error { return nil }

func (f *fakeProvider) Refresh(context.Context, string) (*backend.Session, error) {
	return nil, backend.ErrSessionExpired
}

func (f *fakeProvider) User(context.Context, string) (*backend.Identity, error) {
	return nil, backend.ErrSessionExpired
}

func (f *fakeProvider) ResetPassword(_ context.Context, email, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	return nil
}

// memProfiles serves both the session store and the dashboards.
type memProfiles struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*profile.Profile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{byID: map[uuid.UUID]*profile.Profile{}}
}

func (m *memProfiles) Get(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) GetDoctor(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Role != profile.RoleDoctor {
		return nil, profile.ErrDoctorNotFound
	}
	return p, nil
}

func (m *memProfiles) Create(_ context.Context, p *profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; ok {
		return apperr.Conflict("profile %s exists", p.ID)
	}
	cp := *p
	cp.IsActive = true
	m.byID[p.ID] = &cp
	return nil
}

func (m *memProfiles) Update(_ context.Context, id uuid.UUID, patch profile.Patch) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("profile")
	}
	patch.Apply(p)
	cp := *p
	return &cp, nil
}

func (m *memProfiles) List(_ context.Context, f profile.Filter) []*profile.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*profile.Profile{}
	for _, p := range m.byID {
		if f.Role != "" && p.Role != f.Role {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (m *memProfiles) ListByRole(ctx context.Context, role profile.Role) []*profile.Profile {
	return m.List(ctx, profile.Filter{Role: role})
}

func (m *memProfiles) Deactivate(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	inactive := false
	return m.Update(ctx, id, profile.Patch{IsActive: &inactive})
}

type memAppointments struct {
	mu    sync.Mutex
	items []*appointment.Appointment
}

func (m *memAppointments) snapshot() []*appointment.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*appointment.Appointment(nil), m.items...)
}

func (m *memAppointments) filter(keep func(*appointment.Appointment) bool) []*appointment.Appointment {
	out := []*appointment.Appointment{}
	for _, a := range m.snapshot() {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (m *memAppointments) ListForPatient(_ context.Context, id uuid.UUID) []*appointment.Appointment {
	return m.filter(func(a *appointment.Appointment) bool { return a.PatientID == id })
}

func (m *memAppointments) ListForDoctor(_ context.Context, id uuid.UUID) []*appointment.Appointment {
	return m.filter(func(a *appointment.Appointment) bool { return a.DoctorID == id })
}

func (m *memAppointments) ListAll(context.Context) []*appointment.Appointment {
	return m.filter(func(*appointment.Appointment) bool { return true })
}

func (m *memAppointments) Create(_ context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	if a.DoctorID == uuid.Nil {
		return nil, apperr.Required("doctor_id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.ID = uuid.New()
	m.items = append(m.items, &cp)
	return &cp, nil
}

func (m *memAppointments) UpdateStatus(_ context.Context, id uuid.UUID, status appointment.Status) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.ID == id {
			a.Status = status
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("appointment")
}

// The gateways below hold nothing; the portal tests only need them to load.

type emptyRecords struct{}

func (emptyRecords) ListForPatient(context.Context, uuid.UUID) []*medicalrecord.Record {
	return []*medicalrecord.Record{}
}

func (emptyRecords) ListForDoctor(context.Context, uuid.UUID) []*medicalrecord.Record {
	return []*medicalrecord.Record{}
}

func (emptyRecords) Create(_ context.Context, r *medicalrecord.Record) (*medicalrecord.Record, error) {
	return r, nil
}

type emptyRooms struct{}

func (emptyRooms) List(context.Context) []*room.Room { return []*room.Room{} }

func (emptyRooms) ListAvailable(context.Context) []*room.Room { return []*room.Room{} }

func (emptyRooms) Create(_ context.Context, rm *room.Room) (*room.Room, error) { return rm, nil }

func (emptyRooms) Update(_ context.Context, rm *room.Room) (*room.Room, error) { return rm, nil }

func (emptyRooms) Delete(context.Context, uuid.UUID) error { return nil }

func (emptyRooms) ListBookingsForPatient(context.Context, uuid.UUID) []*room.Booking {
	return []*room.Booking{}
}

func (emptyRooms) ListBookings(context.Context) []*room.Booking { return []*room.Booking{} }

func (emptyRooms) CreateBooking(_ context.Context, b *room.Booking) (*room.Booking, error) {
	return b, nil
}

func (emptyRooms) UpdateBookingStatus(context.Context, uuid.UUID, room.BookingStatus) (*room.Booking, error) {
	return nil, apperr.NotFound("booking")
}

type emptyPayments struct{}

func (emptyPayments) ListForPatient(context.Context, uuid.UUID) []*payment.Payment {
	return []*payment.Payment{}
}

func (emptyPayments) ListAll(context.Context) []*payment.Payment { return []*payment.Payment{} }

func (emptyPayments) Create(_ context.Context, p *payment.Payment) (*payment.Payment, error) {
	return p, nil
}

func (emptyPayments) UpdateStatus(context.Context, uuid.UUID, payment.Status, string) (*payment.Payment, error) {
	return nil, apperr.NotFound("payment")
}

type emptyMessages struct{}

func (emptyMessages) ListForUser(context.Context, uuid.UUID) []*message.Message {
	return []*message.Message{}
}

func (emptyMessages) Send(_ context.Context, m *message.Message) (*message.Message, error) {
	return m, nil
}

func (emptyMessages) MarkRead(context.Context, uuid.UUID) (*message.Message, error) {
	return nil, apperr.NotFound("message")
}

type emptyNurseRequests struct{}

func (emptyNurseRequests) ListForPatient(context.Context, uuid.UUID) []*nurserequest.Request {
	return []*nurserequest.Request{}
}

func (emptyNurseRequests) ListForNurse(context.Context, uuid.UUID) []*nurserequest.Request {
	return []*nurserequest.Request{}
}

func (emptyNurseRequests) ListOpen(context.Context) []*nurserequest.Request {
	return []*nurserequest.Request{}
}

func (emptyNurseRequests) Create(_ context.Context, r *nurserequest.Request) (*nurserequest.Request, error) {
	return r, nil
}

func (emptyNurseRequests) Accept(context.Context, uuid.UUID, uuid.UUID) (*nurserequest.Request, error) {
	return nil, apperr.NotFound("nurse request")
}

func (emptyNurseRequests) UpdateStatus(context.Context, uuid.UUID, string) (*nurserequest.Request, error) {
	return nil, apperr.NotFound("nurse request")
}

type emptyAuditLogs struct{}

func (emptyAuditLogs) List(context.Context, int) []*auditlog.Entry { return []*auditlog.Entry{} }

// auditTrail captures what the audit middleware records.
type auditTrail struct {
	mu      sync.Mutex
	entries []middleware.AuditEntry
}

func (a *auditTrail) RecordAccess(_ context.Context, e middleware.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *auditTrail) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}
