package medicalrecord

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

var ErrNotFound = apperr.NotFound("medical record")

var now = time.Now

func today() time.Time {
	y, m, d := now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("gateway", "medical_records").Logger()}
}

func (s *Service) list(ctx context.Context, f Filter) []*Record {
	items, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list medical records")
		return []*Record{}
	}
	if items == nil {
		items = []*Record{}
	}
	return items
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) []*Record {
	return s.list(ctx, Filter{PatientID: &patientID})
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) []*Record {
	return s.list(ctx, Filter{DoctorID: &doctorID})
}

func (s *Service) ListAll(ctx context.Context) []*Record {
	return s.list(ctx, Filter{})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to fetch medical record")
		return nil, err
	}
	return m, nil
}

func validate(m *Record) error {
	if m.PatientID == uuid.Nil {
		return apperr.Required("patient_id")
	}
	if m.DoctorID == uuid.Nil {
		return apperr.Required("doctor_id")
	}
	m.RecordType = strings.TrimSpace(m.RecordType)
	if m.RecordType == "" {
		return apperr.Required("record_type")
	}
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return apperr.Required("title")
	}
	return nil
}

// Create inserts a record. A missing record date means today.
func (s *Service) Create(ctx context.Context, m *Record) (*Record, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	if m.RecordDate.IsZero() {
		m.RecordDate = today()
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("patient_id", m.PatientID.String()).Msg("failed to create medical record")
		return nil, err
	}
	created, err := s.repo.GetByID(ctx, m.ID)
	if err != nil || created == nil {
		return m, nil
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, m *Record) (*Record, error) {
	if m.ID == uuid.Nil {
		return nil, apperr.Required("id")
	}
	if err := validate(m); err != nil {
		return nil, err
	}
	if m.RecordDate.IsZero() {
		return nil, apperr.Required("record_date")
	}
	updated, err := s.repo.Update(ctx, m)
	if err != nil {
		s.logger.Error().Err(err).Str("id", m.ID.String()).Msg("failed to update medical record")
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to delete medical record")
		return err
	}
	return nil
}
