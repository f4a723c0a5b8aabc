package appointment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

var ErrNotFound = apperr.NotFound("appointment")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("gateway", "appointments").Logger()}
}

func (s *Service) list(ctx context.Context, f Filter, scope string) []*Appointment {
	items, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).Str("scope", scope).Msg("failed to list appointments")
		return []*Appointment{}
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) []*Appointment {
	return s.list(ctx, Filter{PatientID: &patientID}, "patient")
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) []*Appointment {
	return s.list(ctx, Filter{DoctorID: &doctorID}, "doctor")
}

func (s *Service) ListAll(ctx context.Context) []*Appointment {
	return s.list(ctx, Filter{}, "all")
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to fetch appointment")
		return nil, err
	}
	return a, nil
}

func validate(a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperr.Required("patient_id")
	}
	if a.DoctorID == uuid.Nil {
		return apperr.Required("doctor_id")
	}
	if a.Date.IsZero() {
		return apperr.Required("appointment_date")
	}
	a.Time = strings.TrimSpace(a.Time)
	if a.Time == "" {
		return apperr.Required("appointment_time")
	}
	a.Type = strings.TrimSpace(a.Type)
	if a.Type == "" {
		return apperr.Required("type")
	}
	if !a.Status.Valid() {
		return apperr.Validation("invalid status: %s", a.Status)
	}
	return nil
}

// Create inserts a new appointment. Status defaults to pending.
func (s *Service) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	if a.Status == "" {
		a.Status = StatusPending
	}
	if err := validate(a); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		s.logger.Error().Err(err).Str("patient_id", a.PatientID.String()).Msg("failed to create appointment")
		return nil, err
	}
	// Re-read to pick up the joined participants.
	created, err := s.repo.GetByID(ctx, a.ID)
	if err != nil || created == nil {
		return a, nil
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, a *Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		return nil, apperr.Required("id")
	}
	if err := validate(a); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, a)
	if err != nil {
		s.logger.Error().Err(err).Str("id", a.ID.String()).Msg("failed to update appointment")
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	if status == "" {
		return nil, apperr.Required("status")
	}
	if !status.Valid() {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	a, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to update appointment status")
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to delete appointment")
		return err
	}
	return nil
}
