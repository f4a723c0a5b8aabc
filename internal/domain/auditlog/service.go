package auditlog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/platform/middleware"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("gateway", "audit_logs").Logger()}
}

// List returns up to limit of the newest entries. Out-of-range limits fall
// back to DefaultLimit or are capped at MaxLimit.
func (s *Service) List(ctx context.Context, limit int) []*Entry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	items, err := s.repo.List(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Int("limit", limit).Msg("failed to list audit logs")
		return []*Entry{}
	}
	if items == nil {
		items = []*Entry{}
	}
	return items
}

func (s *Service) Record(ctx context.Context, e *Entry) error {
	e.Action = strings.TrimSpace(e.Action)
	if e.Action == "" {
		return apperr.Required("action")
	}
	e.EntityType = strings.TrimSpace(e.EntityType)
	if e.EntityType == "" {
		return apperr.Required("entity_type")
	}
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error().Err(err).Str("action", e.Action).Msg("failed to record audit log")
		return err
	}
	return nil
}

// RecordAccess stores an entry produced by the audit middleware.
func (s *Service) RecordAccess(ctx context.Context, a middleware.AuditEntry) error {
	e := &Entry{
		Action:     a.Action,
		EntityType: a.EntityType,
		Details: map[string]interface{}{
			"method":     a.Method,
			"path":       a.Path,
			"status":     a.StatusCode,
			"request_id": a.RequestID,
			"user_agent": a.UserAgent,
		},
	}
	if len(a.UserRoles) > 0 {
		e.Details["roles"] = a.UserRoles
	}
	if id, err := uuid.Parse(a.UserID); err == nil {
		e.UserID = &id
	}
	if id, err := uuid.Parse(a.EntityID); err == nil {
		e.EntityID = &id
	}
	if a.IPAddress != "" {
		ip := a.IPAddress
		e.IPAddress = &ip
	}
	return s.Record(ctx, e)
}

var _ middleware.AuditRecorder = (*Service)(nil)
