package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads and writes appointments. Single-row reads return
// (nil, nil) when nothing matches.
type Repository interface {
	List(ctx context.Context, f Filter) ([]*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Create(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
