package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, f Filter) ([]*Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	Create(ctx context.Context, p *Payment) error
	// UpdateStatus sets the status, and method and paid_at when non-nil.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, method *string, paidAt *time.Time) (*Payment, error)
}
