package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/healthportal/portal/internal/domain/message"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/shell"
)

func action(t *testing.T, name string, payload any) Action {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return Action{Name: name, Payload: raw}
}

func mustMount(t *testing.T, d Dashboard) {
	t.Helper()
	if err := d.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
}

func TestFor_EveryRoleHasItsDashboard(t *testing.T) {
	w := newWorld()
	for _, role := range profile.Roles {
		ctor, err := For(role)
		if err != nil {
			t.Fatalf("%s: %v", role, err)
		}
		d := ctor(w.person(role, string(role)), w.deps())
		if d.Role() != role {
			t.Errorf("%s: constructor built %s dashboard", role, d.Role())
		}
	}
	if _, err := For("surgeon"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}
}

func TestNew_UsesUserRole(t *testing.T) {
	w := newWorld()
	d, err := New(w.person(profile.RoleNurse, "nina"), w.deps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.(*Nurse); !ok {
		t.Errorf("expected *Nurse, got %T", d)
	}
}

func TestView_BeforeMount(t *testing.T) {
	w := newWorld()
	d := NewPatient(w.person(profile.RolePatient, "pat"), w.deps())
	if _, err := d.View(shell.SectionDashboard, Query{}); !errors.Is(err, ErrNotMounted) {
		t.Errorf("expected ErrNotMounted, got %v", err)
	}
}

func TestView_UnknownSection(t *testing.T) {
	w := newWorld()
	d := NewDoctor(w.person(profile.RoleDoctor, "doc"), w.deps())
	mustMount(t, d)
	if _, err := d.View(shell.SectionPayments, Query{}); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("expected ErrUnknownSection, got %v", err)
	}
}

func TestApply_UnknownAction(t *testing.T) {
	w := newWorld()
	d := NewAdmin(w.person(profile.RoleAdmin, "root"), w.deps())
	mustMount(t, d)
	res := d.Apply(context.Background(), Action{Name: "launch-rocket"})
	if res.OK || res.Error == "" {
		t.Errorf("expected failure, got %+v", res)
	}
}

func TestApply_MissingPayload(t *testing.T) {
	w := newWorld()
	d := NewPatient(w.person(profile.RolePatient, "pat"), w.deps())
	mustMount(t, d)
	if res := d.Apply(context.Background(), Action{Name: "pay-payment"}); res.OK {
		t.Error("expected missing payload to fail")
	}
}

func TestQuery_FilterAndSearch(t *testing.T) {
	me := uuid.New()
	items := []*message.Message{
		{ID: uuid.New(), RecipientID: me, Subject: "Lab results", Content: "All clear"},
		{ID: uuid.New(), RecipientID: me, Subject: "Billing", Content: "Your LAB invoice", IsRead: true},
		{ID: uuid.New(), RecipientID: me, Subject: "Reminder", Content: "Bring id"},
	}

	if got := filterMessages(items, Query{Search: "lab"}); len(got) != 2 {
		t.Errorf("search: expected 2, got %d", len(got))
	}
	if got := filterMessages(items, Query{Status: "unread"}); len(got) != 2 {
		t.Errorf("status: expected 2, got %d", len(got))
	}
	got := filterMessages(items, Query{Search: "lab", Status: "unread"})
	if len(got) != 1 || got[0].Subject != "Lab results" {
		t.Errorf("intersection: got %+v", got)
	}
	if got := filterMessages(items, Query{}); len(got) != 3 {
		t.Errorf("empty query: expected all, got %d", len(got))
	}
}

func TestQuery_ProfileRole(t *testing.T) {
	items := []*profile.Profile{
		{FullName: "Ann Lee", Role: profile.RoleDoctor, IsActive: true},
		{FullName: "Bob Lee", Role: profile.RoleNurse, IsActive: true},
		{FullName: "Cal Lee", Role: profile.RoleDoctor},
	}
	got := profileMatcher.apply(items, Query{Search: "LEE", Role: "doctor", Status: "active"})
	if len(got) != 1 || got[0].FullName != "Ann Lee" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestRemoveAt_DoesNotAlias(t *testing.T) {
	a, b, c := 1, 2, 3
	items := []*int{&a, &b, &c}
	out := removeAt(items, func(p *int) bool { return *p == 2 })
	if len(out) != 2 || *out[1] != 3 {
		t.Fatalf("unexpected result %v", out)
	}
	if *items[1] != 2 {
		t.Error("removeAt modified its input")
	}
}
