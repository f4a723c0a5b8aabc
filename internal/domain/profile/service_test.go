package profile

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

// ── Mock Repository ──

type mockRepo struct {
	data    map[uuid.UUID]*Profile
	listErr error
	creates int
}

func newMockRepo() *mockRepo {
	return &mockRepo{data: make(map[uuid.UUID]*Profile)}
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Profile, error) {
	if p, ok := m.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *mockRepo) Create(_ context.Context, p *Profile) error {
	if _, ok := m.data[p.ID]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	m.creates++
	cp := *p
	m.data[p.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, id uuid.UUID, patch Patch) (*Profile, error) {
	p, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	patch.Apply(p)
	cp := *p
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]*Profile, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Profile
	for _, p := range m.data {
		if f.Role != "" && p.Role != f.Role {
			continue
		}
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.FullName), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.New(io.Discard)), repo
}

func seed(t *testing.T, svc *Service, role Role, name string) *Profile {
	t.Helper()
	p := &Profile{ID: uuid.New(), Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com", FullName: name, Role: role}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return p
}

func TestService_Create_DefaultsToPatient(t *testing.T) {
	svc, repo := newTestService()
	p := &Profile{ID: uuid.New(), Email: " new@example.com "}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.data[p.ID]
	if stored.Role != RolePatient || !stored.IsActive || stored.Email != "new@example.com" {
		t.Errorf("unexpected stored profile %+v", stored)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, repo := newTestService()
	tests := []struct {
		name string
		p    Profile
	}{
		{"missing id", Profile{Email: "a@example.com"}},
		{"missing email", Profile{ID: uuid.New()}},
		{"bad role", Profile{ID: uuid.New(), Email: "a@example.com", Role: "janitor"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			err := svc.Create(context.Background(), &p)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
	if repo.creates != 0 {
		t.Errorf("expected no remote calls, got %d", repo.creates)
	}
}

func TestService_Get_MissingIsNil(t *testing.T) {
	svc, _ := newTestService()
	p, err := svc.Get(context.Background(), uuid.New())
	if err != nil || p != nil {
		t.Errorf("expected (nil, nil), got %v, %v", p, err)
	}
}

func TestService_GetDoctor(t *testing.T) {
	svc, _ := newTestService()
	doc := seed(t, svc, RoleDoctor, "Gregory House")
	pat := seed(t, svc, RolePatient, "John Doe")

	got, err := svc.GetDoctor(context.Background(), doc.ID)
	if err != nil || got.ID != doc.ID {
		t.Fatalf("expected doctor, got %v, %v", got, err)
	}
	if _, err := svc.GetDoctor(context.Background(), pat.ID); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound for a patient, got %v", err)
	}
	if _, err := svc.GetDoctor(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_Update(t *testing.T) {
	svc, _ := newTestService()
	p := seed(t, svc, RolePatient, "John Doe")
	phone := "555-0100"

	got, err := svc.Update(context.Background(), p.ID, Patch{Phone: &phone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Phone == nil || *got.Phone != phone || got.FullName != "John Doe" {
		t.Errorf("unexpected profile %+v", got)
	}

	if _, err := svc.Update(context.Background(), uuid.New(), Patch{Phone: &phone}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Update(context.Background(), p.ID, Patch{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for empty patch, got %v", err)
	}
	bad := Role("root")
	if _, err := svc.Update(context.Background(), p.ID, Patch{Role: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for bad role, got %v", err)
	}
}

func TestService_Deactivate(t *testing.T) {
	svc, _ := newTestService()
	p := seed(t, svc, RoleNurse, "Florence N")
	got, err := svc.Deactivate(context.Background(), p.ID)
	if err != nil || got.IsActive {
		t.Fatalf("expected inactive profile, got %+v, %v", got, err)
	}
	if _, err := svc.RolesFor(context.Background(), p.ID.String()); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected deactivated user to be forbidden, got %v", err)
	}
}

func TestService_List_FailureIsEmpty(t *testing.T) {
	svc, repo := newTestService()
	seed(t, svc, RoleDoctor, "Gregory House")
	repo.listErr = errors.New("permission denied")

	items := svc.List(context.Background(), Filter{})
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil list, got %v", items)
	}
}

func TestService_ListByRole(t *testing.T) {
	svc, _ := newTestService()
	seed(t, svc, RoleDoctor, "Gregory House")
	seed(t, svc, RoleDoctor, "James Wilson")
	seed(t, svc, RolePatient, "John Doe")

	if got := svc.ListByRole(context.Background(), RoleDoctor); len(got) != 2 {
		t.Errorf("expected 2 doctors, got %d", len(got))
	}
}

func TestService_RolesFor(t *testing.T) {
	svc, _ := newTestService()
	doc := seed(t, svc, RoleDoctor, "Gregory House")

	roles, err := svc.RolesFor(context.Background(), doc.ID.String())
	if err != nil || len(roles) != 1 || roles[0] != "doctor" {
		t.Errorf("expected [doctor], got %v, %v", roles, err)
	}
	if _, err := svc.RolesFor(context.Background(), uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRole_Index(t *testing.T) {
	for i, r := range Roles {
		if r.Index() != i {
			t.Errorf("%s.Index() = %d, want %d", r, r.Index(), i)
		}
	}
	if Role("guest").Valid() {
		t.Error("expected unknown role to be invalid")
	}
}
