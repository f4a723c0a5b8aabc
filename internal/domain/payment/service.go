package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

var ErrNotFound = apperr.NotFound("payment")

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("gateway", "payments").Logger(),
		now:    time.Now,
	}
}

func (s *Service) list(ctx context.Context, f Filter) []*Payment {
	items, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list payments")
		return []*Payment{}
	}
	if items == nil {
		items = []*Payment{}
	}
	return items
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) []*Payment {
	return s.list(ctx, Filter{PatientID: &patientID})
}

func (s *Service) ListAll(ctx context.Context) []*Payment {
	return s.list(ctx, Filter{})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to fetch payment")
		return nil, err
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, p *Payment) (*Payment, error) {
	if p.PatientID == uuid.Nil {
		return nil, apperr.Required("patient_id")
	}
	if p.Amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	p.Description = strings.TrimSpace(p.Description)
	if p.Description == "" {
		return nil, apperr.Required("description")
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if !p.Status.Valid() {
		return nil, apperr.Validation("invalid status: %s", p.Status)
	}
	if p.Status == StatusPaid && p.PaidAt == nil {
		t := s.now()
		p.PaidAt = &t
	}
	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("patient_id", p.PatientID.String()).Msg("failed to create payment")
		return nil, err
	}
	return p, nil
}

// UpdateStatus changes the status. Moving to paid stamps paid_at and
// records the method when one is given.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, method string) (*Payment, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	var paidAt *time.Time
	var m *string
	if status == StatusPaid {
		t := s.now()
		paidAt = &t
		if method = strings.TrimSpace(method); method != "" {
			m = &method
		}
	}
	p, err := s.repo.UpdateStatus(ctx, id, status, m, paidAt)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to update payment status")
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}
