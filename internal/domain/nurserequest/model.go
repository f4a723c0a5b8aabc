package nurserequest

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus normalizes s. "confirmed" is an older name for accepted.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st == "confirmed" {
		st = StatusAccepted
	}
	switch st {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, true
	}
	return st, false
}

// transitions lists the statuses reachable from each status.
var transitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func (s Status) CanMoveTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Active reports whether a nurse is still working the request.
func (s Status) Active() bool {
	return s == StatusAccepted || s == StatusInProgress
}

// Open reports whether the request is still waiting for a nurse.
func (r *Request) Open() bool {
	return r.Status == StatusPending && r.NurseID == nil
}

var priorities = map[string]bool{"low": true, "normal": true, "high": true, "urgent": true}

type Request struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	NurseID       *uuid.UUID `db:"nurse_id" json:"nurse_id,omitempty"`
	RequestType   string     `db:"request_type" json:"request_type"`
	Address       string     `db:"address" json:"address"`
	RequestedDate time.Time  `db:"requested_date" json:"requested_date"`
	RequestedTime string     `db:"requested_time" json:"requested_time"`
	DurationHours int        `db:"duration_hours" json:"duration_hours"`
	Priority      string     `db:"priority" json:"priority"`
	Services      []string   `db:"services" json:"services"`
	Status        Status     `db:"status" json:"status"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	PatientName string  `json:"patient_name,omitempty"`
	NurseName   *string `json:"nurse_name,omitempty"`
}

// Filter narrows List. Open selects pending, unassigned requests.
type Filter struct {
	PatientID *uuid.UUID
	NurseID   *uuid.UUID
	Open      bool
}
