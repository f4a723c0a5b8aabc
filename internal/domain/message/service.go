package message

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

var ErrNotFound = apperr.NotFound("message")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("gateway", "messages").Logger()}
}

// ListForUser returns the user's inbox and outbox combined.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) []*Message {
	items, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list messages")
		return []*Message{}
	}
	if items == nil {
		items = []*Message{}
	}
	return items
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to fetch message")
		return nil, err
	}
	return m, nil
}

func (s *Service) Send(ctx context.Context, m *Message) (*Message, error) {
	if m.SenderID == uuid.Nil {
		return nil, apperr.Required("sender_id")
	}
	if m.RecipientID == uuid.Nil {
		return nil, apperr.Required("recipient_id")
	}
	if m.RecipientID == m.SenderID {
		return nil, apperr.Validation("cannot send a message to yourself")
	}
	m.Subject = strings.TrimSpace(m.Subject)
	if m.Subject == "" {
		return nil, apperr.Required("subject")
	}
	if strings.TrimSpace(m.Content) == "" {
		return nil, apperr.Required("content")
	}
	if m.Priority == "" {
		m.Priority = PriorityNormal
	}
	if !m.Priority.Valid() {
		return nil, apperr.Validation("invalid priority: %s", m.Priority)
	}
	m.IsRead = false
	if err := s.repo.Create(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("sender_id", m.SenderID.String()).Msg("failed to send message")
		return nil, err
	}
	sent, err := s.repo.GetByID(ctx, m.ID)
	if err != nil || sent == nil {
		return m, nil
	}
	return sent, nil
}

func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to mark message read")
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to delete message")
		return err
	}
	return nil
}
