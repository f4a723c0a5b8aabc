package profile

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads and writes the profiles table. GetByID returns (nil, nil)
// when no row exists.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	Create(ctx context.Context, p *Profile) error
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*Profile, error)
	List(ctx context.Context, f Filter) ([]*Profile, error)
}
