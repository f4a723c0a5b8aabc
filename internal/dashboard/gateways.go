package dashboard

import (
	"context"

	"github.com/google/uuid"

	"github.com/healthportal/portal/internal/domain/appointment"
	"github.com/healthportal/portal/internal/domain/auditlog"
	"github.com/healthportal/portal/internal/domain/medicalrecord"
	"github.com/healthportal/portal/internal/domain/message"
	"github.com/healthportal/portal/internal/domain/nurserequest"
	"github.com/healthportal/portal/internal/domain/payment"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/domain/room"
)

// The interfaces below are the slices of the domain services the dashboards
// call. The *Service type of each domain package implements its interface.

type Profiles interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	List(ctx context.Context, f profile.Filter) []*profile.Profile
	ListByRole(ctx context.Context, role profile.Role) []*profile.Profile
	Create(ctx context.Context, p *profile.Profile) error
	Update(ctx context.Context, id uuid.UUID, patch profile.Patch) (*profile.Profile, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
}

type Appointments interface {
	ListForPatient(ctx context.Context, patientID uuid.UUID) []*appointment.Appointment
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) []*appointment.Appointment
	ListAll(ctx context.Context) []*appointment.Appointment
	Create(ctx context.Context, a *appointment.Appointment) (*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status appointment.Status) (*appointment.Appointment, error)
}

type Records interface {
	ListForPatient(ctx context.Context, patientID uuid.UUID) []*medicalrecord.Record
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) []*medicalrecord.Record
	Create(ctx context.Context, m *medicalrecord.Record) (*medicalrecord.Record, error)
}

type Rooms interface {
	List(ctx context.Context) []*room.Room
	ListAvailable(ctx context.Context) []*room.Room
	Create(ctx context.Context, rm *room.Room) (*room.Room, error)
	Update(ctx context.Context, rm *room.Room) (*room.Room, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListBookingsForPatient(ctx context.Context, patientID uuid.UUID) []*room.Booking
	ListBookings(ctx context.Context) []*room.Booking
	CreateBooking(ctx context.Context, b *room.Booking) (*room.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status room.BookingStatus) (*room.Booking, error)
}

type Payments interface {
	ListForPatient(ctx context.Context, patientID uuid.UUID) []*payment.Payment
	ListAll(ctx context.Context) []*payment.Payment
	Create(ctx context.Context, p *payment.Payment) (*payment.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status payment.Status, method string) (*payment.Payment, error)
}

type Messages interface {
	ListForUser(ctx context.Context, userID uuid.UUID) []*message.Message
	Send(ctx context.Context, m *message.Message) (*message.Message, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*message.Message, error)
}

type NurseRequests interface {
	ListForPatient(ctx context.Context, patientID uuid.UUID) []*nurserequest.Request
	ListForNurse(ctx context.Context, nurseID uuid.UUID) []*nurserequest.Request
	ListOpen(ctx context.Context) []*nurserequest.Request
	Create(ctx context.Context, r *nurserequest.Request) (*nurserequest.Request, error)
	Accept(ctx context.Context, id, nurseID uuid.UUID) (*nurserequest.Request, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*nurserequest.Request, error)
}

type AuditLogs interface {
	List(ctx context.Context, limit int) []*auditlog.Entry
}

// SelfProfile updates the signed-in user's own profile. *session.Store
// implements it.
type SelfProfile interface {
	UpdateProfile(ctx context.Context, patch profile.Patch) (*profile.Profile, error)
}
