package message

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// ListForUser returns messages the user sent or received, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	Create(ctx context.Context, m *Message) error
	MarkRead(ctx context.Context, id uuid.UUID) (*Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
