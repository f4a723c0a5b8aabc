package profile

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

var (
	ErrNotFound       = apperr.NotFound("profile")
	ErrDoctorNotFound = apperr.NotFound("doctor")
	// ErrEmailInUse is returned by Create when another profile holds the
	// email.
	ErrEmailInUse = apperr.Conflict("email already has a profile")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("gateway", "profiles").Logger()}
}

// Get returns the profile or (nil, nil) when none exists.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to fetch profile")
		return nil, err
	}
	return p, nil
}

// GetDoctor is the one lookup where absence is an error.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Role != RoleDoctor {
		return nil, ErrDoctorNotFound
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		return apperr.Required("id")
	}
	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" {
		return apperr.Required("email")
	}
	if p.Role == "" {
		p.Role = RolePatient
	}
	if !p.Role.Valid() {
		return apperr.Validation("invalid role: %s", p.Role)
	}
	p.IsActive = true
	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("id", p.ID.String()).Msg("failed to create profile")
		return err
	}
	return nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Profile, error) {
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, apperr.Validation("invalid role: %s", *patch.Role)
	}
	if patch.FullName != nil && strings.TrimSpace(*patch.FullName) == "" {
		return nil, apperr.Required("full_name")
	}
	if patch.Empty() {
		return nil, apperr.Validation("nothing to update")
	}
	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to update profile")
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// List never fails: a failed fetch is logged and yields an empty list.
func (s *Service) List(ctx context.Context, f Filter) []*Profile {
	items, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).Str("role", string(f.Role)).Msg("failed to list profiles")
		return []*Profile{}
	}
	if items == nil {
		items = []*Profile{}
	}
	return items
}

func (s *Service) ListByRole(ctx context.Context, role Role) []*Profile {
	return s.List(ctx, Filter{Role: role})
}

// Deactivate marks a profile inactive; profiles are never deleted.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Profile, error) {
	inactive := false
	return s.Update(ctx, id, Patch{IsActive: &inactive})
}

// RolesFor resolves the role of an authenticated subject for the API
// middleware.
func (s *Service) RolesFor(ctx context.Context, userID string) ([]string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid subject: %s", userID)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if !p.IsActive {
		return nil, apperr.ErrForbidden
	}
	return []string{string(p.Role)}, nil
}
