package room

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, f Filter) ([]*Room, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Room, error)
	Create(ctx context.Context, r *Room) error
	Update(ctx context.Context, r *Room) (*Room, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Room, error)
	Delete(ctx context.Context, id uuid.UUID) error

	ListBookings(ctx context.Context, f BookingFilter) ([]*Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	CreateBooking(ctx context.Context, b *Booking) error
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (*Booking, error)
}
