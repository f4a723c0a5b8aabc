package nurserequest

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, f Filter) ([]*Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Create(ctx context.Context, r *Request) error
	// Accept assigns the nurse only while the request is still open. It
	// returns (nil, nil) when no open request matched.
	Accept(ctx context.Context, id, nurseID uuid.UUID) (*Request, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Request, error)
}
