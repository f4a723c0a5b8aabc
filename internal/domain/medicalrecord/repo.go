package medicalrecord

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, f Filter) ([]*Record, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Create(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) (*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
