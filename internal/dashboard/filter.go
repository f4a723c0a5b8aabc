package dashboard

import (
	"strings"

	"github.com/healthportal/portal/internal/domain/appointment"
	"github.com/healthportal/portal/internal/domain/auditlog"
	"github.com/healthportal/portal/internal/domain/medicalrecord"
	"github.com/healthportal/portal/internal/domain/message"
	"github.com/healthportal/portal/internal/domain/nurserequest"
	"github.com/healthportal/portal/internal/domain/payment"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/domain/room"
)

// Query narrows a section list. Search is a case-insensitive substring
// match on the item's names and descriptions; Status and Role are exact
// matches. Set fields combine as an intersection.
type Query struct {
	Search string `query:"search" json:"search,omitempty"`
	Status string `query:"status" json:"status,omitempty"`
	Role   string `query:"role" json:"role,omitempty"`
}

// matcher describes how a Query applies to items of one type. A nil status
// or role func means the list has no such field and the criterion is
// ignored.
type matcher[T any] struct {
	text   func(T) []string
	status func(T) string
	role   func(T) string
}

func (m matcher[T]) apply(items []T, q Query) []T {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if needle != "" && !containsAny(m.text(it), needle) {
			continue
		}
		if q.Status != "" && m.status != nil && m.status(it) != q.Status {
			continue
		}
		if q.Role != "" && m.role != nil && m.role(it) != q.Role {
			continue
		}
		out = append(out, it)
	}
	return out
}

func containsAny(fields []string, needle string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func summaryName(s *profile.Summary) string {
	if s == nil {
		return ""
	}
	return s.FullName
}

var appointmentMatcher = matcher[*appointment.Appointment]{
	text: func(a *appointment.Appointment) []string {
		return []string{summaryName(a.Patient), summaryName(a.Doctor), a.Type, deref(a.Notes)}
	},
	status: func(a *appointment.Appointment) string { return string(a.Status) },
}

var recordMatcher = matcher[*medicalrecord.Record]{
	text: func(r *medicalrecord.Record) []string {
		return []string{r.Title, deref(r.Description), r.RecordType, r.PatientName, r.DoctorName}
	},
}

var messageMatcher = matcher[*message.Message]{
	text: func(m *message.Message) []string {
		return []string{m.Subject, m.Content, m.SenderName, m.RecipientName}
	},
	status: func(m *message.Message) string {
		if m.IsRead {
			return "read"
		}
		return "unread"
	},
}

var paymentMatcher = matcher[*payment.Payment]{
	text:   func(p *payment.Payment) []string { return []string{p.Description, p.PatientName} },
	status: func(p *payment.Payment) string { return string(p.Status) },
}

var roomMatcher = matcher[*room.Room]{
	text: func(r *room.Room) []string {
		return append([]string{r.Number, r.RoomType}, r.Equipment...)
	},
	status: func(r *room.Room) string { return string(r.Status) },
}

var bookingMatcher = matcher[*room.Booking]{
	text:   func(b *room.Booking) []string { return []string{b.RoomNumber, deref(b.Notes)} },
	status: func(b *room.Booking) string { return string(b.Status) },
}

var nurseRequestMatcher = matcher[*nurserequest.Request]{
	text: func(r *nurserequest.Request) []string {
		return append([]string{r.RequestType, r.Address, r.PatientName, deref(r.NurseName), deref(r.Notes)}, r.Services...)
	},
	status: func(r *nurserequest.Request) string { return string(r.Status) },
}

var profileMatcher = matcher[*profile.Profile]{
	text: func(p *profile.Profile) []string {
		return []string{p.FullName, p.Email, deref(p.Specialization), deref(p.Department)}
	},
	status: func(p *profile.Profile) string {
		if p.IsActive {
			return "active"
		}
		return "inactive"
	},
	role: func(p *profile.Profile) string { return string(p.Role) },
}

var auditMatcher = matcher[*auditlog.Entry]{
	text: func(e *auditlog.Entry) []string {
		return []string{e.Action, e.EntityType, deref(e.UserName)}
	},
}

func filterMessages(items []*message.Message, q Query) []*message.Message {
	return messageMatcher.apply(items, q)
}
