package room

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusOccupied    Status = "occupied"
	StatusMaintenance Status = "maintenance"
	StatusReserved    Status = "reserved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusMaintenance, StatusReserved:
		return true
	}
	return false
}

type Room struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Number    string    `db:"room_number" json:"room_number"`
	RoomType  string    `db:"room_type" json:"room_type"`
	Floor     int       `db:"floor" json:"floor"`
	Capacity  int       `db:"capacity" json:"capacity"`
	DailyRate float64   `db:"daily_rate" json:"daily_rate"`
	Status    Status    `db:"status" json:"status"`
	Equipment []string  `db:"equipment" json:"equipment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// Active reports whether the booking still holds the room.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Booking maps to room_bookings, with the room number joined in.
type Booking struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	PatientID  uuid.UUID     `db:"patient_id" json:"patient_id"`
	RoomID     uuid.UUID     `db:"room_id" json:"room_id"`
	CheckIn    time.Time     `db:"check_in_date" json:"check_in_date"`
	CheckOut   time.Time     `db:"check_out_date" json:"check_out_date"`
	TotalCost  float64       `db:"total_cost" json:"total_cost"`
	Status     BookingStatus `db:"status" json:"status"`
	Notes      *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
	RoomNumber string        `json:"room_number,omitempty"`
}

// Days is the number of billable days between check-in and check-out,
// never less than one.
func Days(checkIn, checkOut time.Time) int {
	d := int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
	if d < 1 {
		return 1
	}
	return d
}

type Filter struct {
	Status Status
}

type BookingFilter struct {
	PatientID *uuid.UUID
}
