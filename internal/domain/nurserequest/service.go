package nurserequest

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

var ErrNotFound = apperr.NotFound("nurse request")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("gateway", "nurse_requests").Logger()}
}

func (s *Service) list(ctx context.Context, f Filter, scope string) []*Request {
	items, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).Str("scope", scope).Msg("failed to list nurse requests")
		return []*Request{}
	}
	if items == nil {
		items = []*Request{}
	}
	return items
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) []*Request {
	return s.list(ctx, Filter{PatientID: &patientID}, "patient")
}

func (s *Service) ListForNurse(ctx context.Context, nurseID uuid.UUID) []*Request {
	return s.list(ctx, Filter{NurseID: &nurseID}, "nurse")
}

// ListOpen returns pending requests no nurse has taken yet.
func (s *Service) ListOpen(ctx context.Context) []*Request {
	return s.list(ctx, Filter{Open: true}, "open")
}

func (s *Service) ListAll(ctx context.Context) []*Request {
	return s.list(ctx, Filter{}, "all")
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to fetch nurse request")
		return nil, err
	}
	return r, nil
}

func (s *Service) Create(ctx context.Context, r *Request) (*Request, error) {
	if r.PatientID == uuid.Nil {
		return nil, apperr.Required("patient_id")
	}
	r.RequestType = strings.TrimSpace(r.RequestType)
	if r.RequestType == "" {
		return nil, apperr.Required("request_type")
	}
	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		return nil, apperr.Required("address")
	}
	if r.RequestedDate.IsZero() {
		return nil, apperr.Required("requested_date")
	}
	r.RequestedTime = strings.TrimSpace(r.RequestedTime)
	if r.RequestedTime == "" {
		return nil, apperr.Required("requested_time")
	}
	if r.DurationHours < 1 {
		r.DurationHours = 1
	}
	if r.Priority == "" {
		r.Priority = "normal"
	}
	if !priorities[r.Priority] {
		return nil, apperr.Validation("invalid priority: %s", r.Priority)
	}
	if r.Services == nil {
		r.Services = []string{}
	}
	r.Status = StatusPending
	r.NurseID = nil

	if err := s.repo.Create(ctx, r); err != nil {
		s.logger.Error().Err(err).Str("patient_id", r.PatientID.String()).Msg("failed to create nurse request")
		return nil, err
	}
	created, err := s.repo.GetByID(ctx, r.ID)
	if err != nil || created == nil {
		return r, nil
	}
	return created, nil
}

// Accept assigns an open request to nurseID. A request already taken by
// another nurse yields ErrConflict.
func (s *Service) Accept(ctx context.Context, id, nurseID uuid.UUID) (*Request, error) {
	if nurseID == uuid.Nil {
		return nil, apperr.Required("nurse_id")
	}
	r, err := s.repo.Accept(ctx, id, nurseID)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to accept nurse request")
		return nil, err
	}
	if r != nil {
		return r, nil
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	return nil, apperr.Conflict("request is %s", existing.Status)
}

// UpdateStatus moves a request along pending → accepted → in_progress →
// completed. Cancellation is allowed from any open state.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Request, error) {
	next, ok := ParseStatus(status)
	if !ok {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.Status == next {
		return existing, nil
	}
	if !existing.Status.CanMoveTo(next) {
		return nil, apperr.Conflict("cannot move request from %s to %s", existing.Status, next)
	}
	if next == StatusAccepted && existing.NurseID == nil {
		return nil, apperr.Validation("accepting a request requires a nurse")
	}
	r, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to update nurse request status")
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}
