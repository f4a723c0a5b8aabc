// Package shell is the role-specific frame around a dashboard: its ordered
// sections, the active one, and the way out.
package shell

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/session"
)

type Section string

const (
	SectionHome           Section = "home"
	SectionDashboard      Section = "dashboard"
	SectionAppointments   Section = "appointments"
	SectionMedicalRecords Section = "medical-records"
	SectionMessages       Section = "messages"
	SectionPayments       Section = "payments"
	SectionRoomBooking    Section = "room-booking"
	SectionNurseRequests  Section = "nurse-requests"
	SectionProfile        Section = "profile"
	SectionSettings       Section = "settings"
	SectionPatients       Section = "patients"
	SectionRequests       Section = "requests"
	SectionUsers          Section = "users"
	SectionRooms          Section = "rooms"
	SectionAuditLogs      Section = "audit-logs"
)

// sections lists each role's sections in display order, indexed by
// profile.Role.Index.
var sections = [profile.RoleCount][]Section{
	{SectionDashboard, SectionAppointments, SectionMedicalRecords, SectionMessages, SectionPayments, SectionRoomBooking, SectionNurseRequests, SectionProfile, SectionSettings},
	{SectionDashboard, SectionAppointments, SectionPatients, SectionMedicalRecords, SectionMessages, SectionProfile, SectionSettings},
	{SectionDashboard, SectionRequests, SectionPatients, SectionMessages, SectionProfile, SectionSettings},
	{SectionDashboard, SectionUsers, SectionAppointments, SectionRooms, SectionPayments, SectionAuditLogs, SectionSettings},
}

var labels = map[Section]string{
	SectionDashboard:      "Dashboard",
	SectionAppointments:   "Appointments",
	SectionMedicalRecords: "Medical Records",
	SectionMessages:       "Messages",
	SectionPayments:       "Payments",
	SectionRoomBooking:    "Room Booking",
	SectionNurseRequests:  "Nurse Requests",
	SectionProfile:        "Profile",
	SectionSettings:       "Settings",
	SectionPatients:       "Patients",
	SectionRequests:       "Requests",
	SectionUsers:          "Users",
	SectionRooms:          "Rooms",
	SectionAuditLogs:      "Audit Logs",
}

func (s Section) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// Sections returns the ordered sections of role, or nil for an unknown role.
func Sections(role profile.Role) []Section {
	i := role.Index()
	if i < 0 {
		return nil
	}
	out := make([]Section, len(sections[i]))
	copy(out, sections[i])
	return out
}

// Outcome is the effect of a navigation request.
type Outcome int

const (
	ChangeSection Outcome = iota
	LeaveDashboard
)

// Shell holds the active section for one signed-in user.
type Shell struct {
	Role   profile.Role
	User   *session.User
	Active Section
}

// New opens the shell on the dashboard section.
func New(user *session.User) (*Shell, error) {
	role := user.Role()
	if !role.Valid() {
		return nil, apperr.Validation("no dashboard for role %q", role)
	}
	return &Shell{Role: role, User: user, Active: SectionDashboard}, nil
}

// Has reports whether key is one of the role's sections.
func (s *Shell) Has(key Section) bool {
	for _, sec := range sections[s.Role.Index()] {
		if sec == key {
			return true
		}
	}
	return false
}

// Navigate moves to key. "home" leaves the dashboard and keeps the active
// section; an unknown key is rejected and changes nothing.
func (s *Shell) Navigate(key string) (Outcome, error) {
	sec := Section(key)
	if sec == SectionHome {
		return LeaveDashboard, nil
	}
	if !s.Has(sec) {
		return ChangeSection, apperr.Validation("unknown section %q for %s", key, s.Role)
	}
	s.Active = sec
	return ChangeSection, nil
}

// SignOuter ends the session. *session.Store implements it.
type SignOuter interface {
	Logout(ctx context.Context) error
}

// SignOut logs out and returns where to go next, which is always the login
// page.
func (s *Shell) SignOut(ctx context.Context, so SignOuter, logger zerolog.Logger) string {
	if err := so.Logout(ctx); err != nil {
		logger.Warn().Err(err).Str("role", string(s.Role)).Msg("sign-out failed remotely, local session cleared")
	}
	s.Active = SectionDashboard
	return "/login"
}

type NavItem struct {
	Key    Section `json:"key"`
	Label  string  `json:"label"`
	Active bool    `json:"active"`
}

// Nav is the view model of the shell frame.
type Nav struct {
	Role     profile.Role `json:"role"`
	UserName string       `json:"user_name"`
	Title    string       `json:"title"`
	Active   Section      `json:"active"`
	Items    []NavItem    `json:"items"`
}

func (s *Shell) Nav() Nav {
	secs := sections[s.Role.Index()]
	items := make([]NavItem, 0, len(secs))
	for _, sec := range secs {
		items = append(items, NavItem{Key: sec, Label: sec.Label(), Active: sec == s.Active})
	}
	name := ""
	if s.User != nil {
		name = s.User.DisplayName()
	}
	return Nav{
		Role:     s.Role,
		UserName: name,
		Title:    fmt.Sprintf("%s Portal", titles[s.Role.Index()]),
		Active:   s.Active,
		Items:    items,
	}
}

var titles = [profile.RoleCount]string{"Patient", "Doctor", "Nurse", "Admin"}
