package medicalrecord

import (
	"time"

	"github.com/google/uuid"
)

// Record maps to the medical_records table. Patient and doctor names are
// joined in on reads.
type Record struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	RecordType  string    `db:"record_type" json:"record_type"`
	RecordDate  time.Time `db:"record_date" json:"record_date"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsCritical  bool      `db:"is_critical" json:"is_critical"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	PatientName string `json:"patient_name,omitempty"`
	DoctorName  string `json:"doctor_name,omitempty"`
}

type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}
