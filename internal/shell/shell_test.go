package shell

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/platform/backend"
	"github.com/healthportal/portal/internal/session"
)

func userWith(role profile.Role) *session.User {
	id := uuid.New()
	return &session.User{
		Identity: backend.Identity{ID: id, Email: "u@example.com"},
		Profile:  &profile.Profile{ID: id, FullName: "Una User", Role: role},
	}
}

type fakeSignOut struct {
	err   error
	calls int
}

func (f *fakeSignOut) Logout(context.Context) error {
	f.calls++
	return f.err
}

func TestSections(t *testing.T) {
	tests := []struct {
		role  profile.Role
		first Section
		count int
	}{
		{profile.RolePatient, SectionDashboard, 9},
		{profile.RoleDoctor, SectionDashboard, 7},
		{profile.RoleNurse, SectionDashboard, 6},
		{profile.RoleAdmin, SectionDashboard, 7},
	}
	for _, tt := range tests {
		got := Sections(tt.role)
		if len(got) != tt.count || got[0] != tt.first {
			t.Errorf("%s: got %v", tt.role, got)
		}
	}
	if Sections("surgeon") != nil {
		t.Error("expected nil for unknown role")
	}
	if s := Sections(profile.RoleNurse); s[1] != SectionRequests {
		t.Errorf("expected nurse requests second, got %v", s)
	}
}

func TestNew_RejectsUnknownRole(t *testing.T) {
	if _, err := New(userWith("surgeon")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestNavigate(t *testing.T) {
	s, err := New(userWith(profile.RoleDoctor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := s.Navigate("patients")
	if err != nil || out != ChangeSection || s.Active != SectionPatients {
		t.Errorf("expected change to patients, got %v %v %s", out, err, s.Active)
	}

	if _, err := s.Navigate("payments"); err == nil {
		t.Error("expected payments to be unknown for doctors")
	}
	if s.Active != SectionPatients {
		t.Errorf("expected active section unchanged, got %s", s.Active)
	}

	out, err = s.Navigate("home")
	if err != nil || out != LeaveDashboard {
		t.Errorf("expected leave dashboard, got %v %v", out, err)
	}
}

func TestSignOut_AlwaysLogin(t *testing.T) {
	s, _ := New(userWith(profile.RolePatient))
	for _, so := range []*fakeSignOut{{}, {err: errors.New("offline")}} {
		if to := s.SignOut(context.Background(), so, zerolog.New(io.Discard)); to != "/login" {
			t.Errorf("expected /login, got %s", to)
		}
		if so.calls != 1 {
			t.Errorf("expected logout called once, got %d", so.calls)
		}
	}
}

func TestNav(t *testing.T) {
	s, _ := New(userWith(profile.RoleAdmin))
	_, _ = s.Navigate("audit-logs")

	nav := s.Nav()
	if nav.Title != "Admin Portal" || nav.UserName != "Una User" {
		t.Errorf("unexpected nav header %+v", nav)
	}
	active := 0
	for _, item := range nav.Items {
		if item.Active {
			active++
			if item.Key != SectionAuditLogs || item.Label != "Audit Logs" {
				t.Errorf("unexpected active item %+v", item)
			}
		}
	}
	if active != 1 {
		t.Errorf("expected exactly one active item, got %d", active)
	}
}
