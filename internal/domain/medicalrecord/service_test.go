package medicalrecord

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

// ── Mock Repository ──

type mockRepo struct {
	data    map[uuid.UUID]*Record
	listErr error
	saveErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{data: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]*Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Record
	for _, r := range m.data {
		if f.PatientID != nil && r.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && r.DoctorID != *f.DoctorID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	if r, ok := m.data[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *mockRepo) Create(_ context.Context, r *Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	r.ID = uuid.New()
	cp := *r
	m.data[r.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, r *Record) (*Record, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	if _, ok := m.data[r.ID]; !ok {
		return nil, nil
	}
	cp := *r
	m.data[r.ID] = &cp
	return r, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.data, id)
	return nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.New(io.Discard)), repo
}

func TestCreate_DefaultsRecordDate(t *testing.T) {
	svc, _ := newTestService()
	now = func() time.Time { return time.Date(2025, 4, 2, 17, 45, 0, 0, time.UTC) }
	defer func() { now = time.Now }()

	m, err := svc.Create(context.Background(), &Record{
		PatientID: uuid.New(), DoctorID: uuid.New(), RecordType: "lab_result", Title: "CBC",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	if !m.RecordDate.Equal(want) {
		t.Errorf("expected %v, got %v", want, m.RecordDate)
	}
}

func TestCreate_RequiredFields(t *testing.T) {
	svc, repo := newTestService()
	tests := []struct {
		name string
		r    Record
	}{
		{"no patient", Record{DoctorID: uuid.New(), RecordType: "diagnosis", Title: "Flu"}},
		{"no doctor", Record{PatientID: uuid.New(), RecordType: "diagnosis", Title: "Flu"}},
		{"no type", Record{PatientID: uuid.New(), DoctorID: uuid.New(), Title: "Flu"}},
		{"blank title", Record{PatientID: uuid.New(), DoctorID: uuid.New(), RecordType: "diagnosis", Title: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.r
			if _, err := svc.Create(context.Background(), &r); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
	if len(repo.data) != 0 {
		t.Error("expected no remote writes")
	}
}

func TestListScopes(t *testing.T) {
	svc, _ := newTestService()
	patient, doctor := uuid.New(), uuid.New()
	for _, r := range []*Record{
		{PatientID: patient, DoctorID: doctor, RecordType: "diagnosis", Title: "A"},
		{PatientID: patient, DoctorID: uuid.New(), RecordType: "diagnosis", Title: "B"},
		{PatientID: uuid.New(), DoctorID: doctor, RecordType: "diagnosis", Title: "C", IsCritical: true},
	} {
		if _, err := svc.Create(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(svc.ListForPatient(context.Background(), patient)); got != 2 {
		t.Errorf("patient: expected 2, got %d", got)
	}
	if got := len(svc.ListForDoctor(context.Background(), doctor)); got != 2 {
		t.Errorf("doctor: expected 2, got %d", got)
	}
	if got := len(svc.ListAll(context.Background())); got != 3 {
		t.Errorf("all: expected 3, got %d", got)
	}
}

func TestList_FailureIsEmpty(t *testing.T) {
	svc, repo := newTestService()
	repo.listErr = errors.New("boom")
	if got := svc.ListAll(context.Background()); got == nil || len(got) != 0 {
		t.Errorf("expected empty slice, got %v", got)
	}
}

func TestUpdate_Missing(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Update(context.Background(), &Record{
		ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(),
		RecordType: "note", Title: "x", RecordDate: time.Now(),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDelete_MissingIsNoop(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Delete(context.Background(), uuid.New()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
