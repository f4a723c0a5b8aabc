package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthportal/portal/internal/domain/profile"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusConfirmed: true, StatusCompleted: true, StatusCancelled: true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// Appointment maps to the appointments table, with the patient and doctor
// joined in.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date      time.Time `db:"appointment_date" json:"appointment_date"`
	Time      string    `db:"appointment_time" json:"appointment_time"`
	Type      string    `db:"type" json:"type"`
	Status    Status    `db:"status" json:"status"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Patient *profile.Summary `json:"patient,omitempty"`
	Doctor  *profile.Summary `json:"doctor,omitempty"`
}

// Upcoming reports whether the appointment is still ahead of now and not
// closed.
func (a *Appointment) Upcoming(now time.Time) bool {
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ay, am, ad := a.Date.Date()
	return !time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).Before(today)
}

// OnDay reports whether the appointment falls on the calendar day of t.
func (a *Appointment) OnDay(t time.Time) bool {
	y, m, d := t.Date()
	ay, am, ad := a.Date.Date()
	return y == ay && m == am && d == ad
}

// Filter selects appointments by participant. Nil fields match everything.
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}
